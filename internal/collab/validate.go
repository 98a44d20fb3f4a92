package collab

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/badoux/checkmail"
	"github.com/go-playground/validator/v10"

	"github.com/good-yellow-bee/projectdesk/internal/models"
)

var validate = newValidator()

// dateLayouts are accepted for project dates and task deadlines.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	mustRegister(v, "priority", func(fl validator.FieldLevel) bool {
		return models.Priority(fl.Field().String()).Valid()
	})
	mustRegister(v, "project_status", func(fl validator.FieldLevel) bool {
		return models.Status(fl.Field().String()).Valid()
	})
	mustRegister(v, "isodate", func(fl validator.FieldLevel) bool {
		_, ok := parseDate(fl.Field().String())
		return ok
	})
	mustRegister(v, "mail", func(fl validator.FieldLevel) bool {
		return checkmail.ValidateFormat(fl.Field().String()) == nil
	})
	return v
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("register validation %s: %v", tag, err))
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateStruct runs struct tag validation and converts failures into a
// ValidationError keyed by json field names.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return &ValidationError{Fields: fields}
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters"
	case "max":
		return field + " must be at most " + fe.Param() + " characters"
	case "priority":
		return field + " must be one of: Low, Medium, High"
	case "project_status":
		return field + " must be one of: Not Started, In Progress, Completed"
	case "isodate":
		return field + " must be a valid date"
	case "mail":
		return field + " must be a valid email"
	case "oneof":
		return field + " must be one of: " + fe.Param()
	default:
		return field + " is invalid"
	}
}

// ProjectInput is the create/update payload for a project.
type ProjectInput struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Description string          `json:"description" validate:"required"`
	Department  string          `json:"department" validate:"required,max=100"`
	StartDate   string          `json:"startDate" validate:"required,isodate"`
	EndDate     string          `json:"endDate" validate:"required,isodate"`
	Priority    string          `json:"priority" validate:"required,priority"`
	TeamMembers json.RawMessage `json:"teamMembers"`
	Budget      any             `json:"budget"`
	Status      string          `json:"status" validate:"omitempty,project_status"`
	Milestones  string          `json:"milestones"`
}

// normalized is a validated ProjectInput ready to be stored.
type normalized struct {
	teamMembers models.StringSet
	budget      *float64
	status      models.Status
	tags        models.StringSet
}

// normalize validates in and converts its loosely typed fields.
func (in *ProjectInput) normalize() (*normalized, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Department = strings.TrimSpace(in.Department)
	in.Status = strings.TrimSpace(in.Status)

	var fields []FieldError
	if err := ValidateStruct(in); err != nil {
		var verr *ValidationError
		if !errors.As(err, &verr) {
			return nil, err
		}
		fields = append(fields, verr.Fields...)
	}

	out := &normalized{status: models.StatusNotStarted}
	if in.Status != "" {
		out.status = models.Status(in.Status)
	}

	members, err := decodeMembers(in.TeamMembers)
	if err != nil {
		fields = append(fields, FieldError{Field: "teamMembers", Message: err.Error()})
	}
	out.teamMembers = members

	budget, err := decodeBudget(in.Budget)
	if err != nil {
		fields = append(fields, FieldError{Field: "budget", Message: err.Error()})
	}
	out.budget = budget

	if len(fields) == 0 {
		start, _ := parseDate(in.StartDate)
		end, _ := parseDate(in.EndDate)
		if end.Before(start) {
			fields = append(fields, FieldError{Field: "endDate", Message: "endDate must not be before startDate"})
		}
	}

	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	out.tags = models.SplitStringSet(in.Milestones)
	return out, nil
}

func decodeMembers(raw json.RawMessage) (models.StringSet, error) {
	if len(raw) == 0 {
		return models.StringSet{}, nil
	}
	var set models.StringSet
	if err := json.Unmarshal(raw, &set); err != nil {
		return nil, errors.New("teamMembers must be an array of user ids")
	}
	ids, err := set.IDs()
	if err != nil {
		return nil, fmt.Errorf("teamMembers: %w", err)
	}
	return ids, nil
}

// decodeBudget accepts a JSON number, a numeric string, or an empty value.
func decodeBudget(v any) (*float64, error) {
	switch b := v.(type) {
	case nil:
		return nil, nil
	case float64:
		return &b, nil
	case json.Number:
		f, err := b.Float64()
		if err != nil {
			return nil, errors.New("budget must be numeric")
		}
		return &f, nil
	case string:
		b = strings.TrimSpace(b)
		if b == "" {
			return nil, nil
		}
		f, err := strconv.ParseFloat(b, 64)
		if err != nil {
			return nil, errors.New("budget must be numeric")
		}
		return &f, nil
	default:
		return nil, errors.New("budget must be numeric")
	}
}

// TaskInput is the create/update payload for a task.
type TaskInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Assignee string `json:"assignee" validate:"required"`
	Status   string `json:"status" validate:"omitempty,project_status"`
	Deadline string `json:"deadline" validate:"required,isodate"`
}

func (in *TaskInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Assignee = strings.TrimSpace(in.Assignee)
	in.Status = strings.TrimSpace(in.Status)
	in.Deadline = strings.TrimSpace(in.Deadline)
	if in.Status == "" {
		in.Status = string(models.StatusNotStarted)
	}
	return ValidateStruct(in)
}
