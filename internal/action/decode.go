package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/ErlanBelekov/automation-scheduler/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report config errors with the JSON field names users wrote
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

var registry = map[domain.ActionType]func() Action{
	domain.ActionEmailReminder:    func() Action { return &EmailReminder{} },
	domain.ActionTaskCreation:     func() Action { return &TaskCreation{} },
	domain.ActionStatusUpdate:     func() Action { return &StatusUpdate{} },
	domain.ActionReportGeneration: func() Action { return &ReportGeneration{} },
	domain.ActionClientFollowUp:   func() Action { return &ClientFollowUp{} },
	domain.ActionInvoiceReminder:  func() Action { return &InvoiceReminder{} },
	domain.ActionBackupData:       func() Action { return &BackupData{} },
	domain.ActionNotificationSend: func() Action { return &NotificationSend{} },
	domain.ActionProjectArchive:   func() Action { return &ProjectArchive{} },
	domain.ActionClientCheckIn:    func() Action { return &ClientCheckIn{} },
	domain.ActionDeadlineAlert:    func() Action { return &DeadlineAlert{} },
	domain.ActionWeeklySummary:    func() Action { return &WeeklySummary{} },
}

// normalizer is implemented by configs that fill defaults or check
// cross-field rules after unmarshalling.
type normalizer interface {
	normalize() error
}

// Decode parses and validates the config of the given action type.
func Decode(t domain.ActionType, raw json.RawMessage) (Action, error) {
	newAction, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownActionType, t)
	}

	act := newAction()
	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, act); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidActionConfig, err)
		}
	}
	if n, ok := act.(normalizer); ok {
		if err := n.normalize(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidActionConfig, err)
		}
	}
	if err := validate.Struct(act); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidActionConfig, describe(err))
	}
	return act, nil
}

// Conditions gate a run without changing its schedule.
type Conditions struct {
	SkipWeekends bool `json:"skipWeekends"`
	MinMatches   int  `json:"minMatches" validate:"gte=0"`
}

func DecodeConditions(raw json.RawMessage) (Conditions, error) {
	var c Conditions
	if len(raw) == 0 || string(raw) == "null" {
		return c, nil
	}
	if err := json.Unmarshal(raw, &c); err != nil {
		return c, fmt.Errorf("%w: conditions: %v", domain.ErrInvalidActionConfig, err)
	}
	if err := validate.Struct(c); err != nil {
		return c, fmt.Errorf("%w: conditions: %s", domain.ErrInvalidActionConfig, describe(err))
	}
	return c, nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, len(verrs))
	for i, fe := range verrs {
		switch {
		case fe.Tag() == "required":
			parts[i] = fmt.Sprintf("%s is required", fe.Field())
		case fe.Param() != "":
			parts[i] = fmt.Sprintf("%s must satisfy %s=%s", fe.Field(), fe.Tag(), fe.Param())
		default:
			parts[i] = fmt.Sprintf("%s must be a valid %s", fe.Field(), fe.Tag())
		}
	}
	return strings.Join(parts, "; ")
}
