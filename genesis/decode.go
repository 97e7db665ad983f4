package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// envelope is the common shape of every backend response.
type envelope struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type signalsResponse struct {
	envelope
	Signals []json.RawMessage `json:"signals"`
}

// decodeSignals validates each raw signal on its own so that one bad record
// does not discard the rest of the batch. Accepted signals are returned in
// ascending id order.
func decodeSignals(raw []json.RawMessage) SignalBatch {
	var batch SignalBatch
	for _, r := range raw {
		var s Signal
		if err := json.Unmarshal(r, &s); err != nil {
			batch.Rejected = append(batch.Rejected, rejectFromRaw(r, fmt.Sprintf("malformed signal: %v", err)))
			continue
		}
		s.Symbol = strings.TrimSpace(s.Symbol)
		s.Action = Action(strings.ToUpper(strings.TrimSpace(string(s.Action))))

		if err := validate.Struct(s); err != nil {
			batch.Rejected = append(batch.Rejected, RejectedSignal{
				ID:     s.ID,
				Symbol: s.Symbol,
				Action: s.Action,
				Reason: describe(err),
			})
			continue
		}
		batch.Signals = append(batch.Signals, s)
	}

	sort.SliceStable(batch.Signals, func(i, j int) bool {
		return batch.Signals[i].ID < batch.Signals[j].ID
	})
	return batch
}

// rejectFromRaw salvages whatever identifying fields it can from a record
// that did not decode as a Signal.
func rejectFromRaw(r json.RawMessage, reason string) RejectedSignal {
	var loose map[string]any
	_ = json.Unmarshal(r, &loose)

	rej := RejectedSignal{Reason: reason}
	if v, ok := loose["id"].(float64); ok {
		rej.ID = int64(v)
	}
	if v, ok := loose["symbol"].(string); ok {
		rej.Symbol = v
	}
	if v, ok := loose["action"].(string); ok {
		rej.Action = Action(v)
	}
	return rej
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("invalid %s (%s=%v)", strings.ToLower(fe.Field()), fe.Tag(), fe.Value()))
	}
	return strings.Join(msgs, "; ")
}

type modifyResponse struct {
	envelope
	Mods []ModifyRequest `json:"mods"`
}

type closeResponse struct {
	envelope
	Tickets []uint64 `json:"tickets"`
}

// validMods drops modify requests without a usable ticket.
func validMods(in []ModifyRequest) (out []ModifyRequest, dropped int) {
	for _, m := range in {
		if err := validate.Struct(m); err != nil {
			dropped++
			continue
		}
		out = append(out, m)
	}
	return out, dropped
}
