package entries

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/refdata"
)

// DateLayout is the wire format of ledger dates.
const DateLayout = "2006-01-02"

const maxTitleLength = 128

// maxValue is the exclusive upper bound for decimal(8,2).
var maxValue = decimal.New(1_000_000, 0)

// Input carries ledger entry fields. A nil field is absent: on create it is
// a missing-field error unless optional, on update it keeps the prior value.
type Input struct {
	TypeID     *uint            `json:"type_id"`
	Date       *string          `json:"date"`
	Title      *string          `json:"title"`
	CategoryID *uint            `json:"category_id"`
	Value      *decimal.Decimal `json:"value"`
	ByID       *uint            `json:"by"`
}

// validated is Input after checking, with the date parsed.
type validated struct {
	TypeID     *uint
	Date       *time.Time
	Title      *string
	CategoryID *uint
	Value      *decimal.Decimal
	ByID       *uint
}

// Validator checks entry fields against reference data, group membership
// and the current calendar day.
type Validator struct {
	catalog  *refdata.Catalog
	policy   *access.Policy
	location *time.Location
	now      func() time.Time
}

func NewValidator(catalog *refdata.Catalog, policy *access.Policy, loc *time.Location) *Validator {
	if loc == nil {
		loc = time.Local
	}
	return &Validator{catalog: catalog, policy: policy, location: loc, now: time.Now}
}

// Today returns the current calendar day in the validator's location, as
// midnight UTC.
func (v *Validator) Today() time.Time {
	y, m, d := v.now().In(v.location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ValidateValue accepts positive amounts with at most two decimal places
// that fit decimal(8,2).
func ValidateValue(value decimal.Decimal) string {
	switch {
	case !value.IsPositive():
		return "Ensure this value is greater than 0."
	case !value.Equal(value.Truncate(2)):
		return "Ensure that there are no more than 2 decimal places."
	case value.GreaterThanOrEqual(maxValue):
		return "Ensure that there are no more than 8 digits in total."
	}
	return ""
}

// ParseDate parses a YYYY-MM-DD date and rejects days after today.
func (v *Validator) ParseDate(s string) (time.Time, string) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, "Date has wrong format. Use YYYY-MM-DD."
	}
	if d.After(v.Today()) {
		return time.Time{}, "Date cannot be in the future."
	}
	return d, ""
}

// validate checks in against groupID. With partial set, absent fields are
// skipped; otherwise every field except by is required. All failures are
// returned together as one validation error.
func (v *Validator) validate(ctx context.Context, groupID uint, in Input, partial bool) (*validated, error) {
	fields := map[string]string{}
	out := &validated{}

	required := func(name string, present bool) bool {
		if !present && !partial {
			fields[name] = "This field is required."
		}
		return present
	}

	if required("type_id", in.TypeID != nil) {
		if _, ok := v.catalog.EntryType(*in.TypeID); !ok {
			fields["type_id"] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.TypeID)
		} else {
			out.TypeID = in.TypeID
		}
	}

	if required("date", in.Date != nil) {
		if d, msg := v.ParseDate(*in.Date); msg != "" {
			fields["date"] = msg
		} else {
			out.Date = &d
		}
	}

	if required("title", in.Title != nil) {
		title := strings.TrimSpace(*in.Title)
		switch {
		case title == "":
			fields["title"] = "This field may not be blank."
		case utf8.RuneCountInString(title) > maxTitleLength:
			fields["title"] = fmt.Sprintf("Ensure this field has no more than %d characters.", maxTitleLength)
		default:
			out.Title = &title
		}
	}

	if required("category_id", in.CategoryID != nil) {
		if _, ok := v.catalog.Category(*in.CategoryID); !ok {
			fields["category_id"] = fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *in.CategoryID)
		} else {
			out.CategoryID = in.CategoryID
		}
	}

	if required("value", in.Value != nil) {
		if msg := ValidateValue(*in.Value); msg != "" {
			fields["value"] = msg
		} else {
			out.Value = in.Value
		}
	}

	if in.ByID != nil {
		member, err := v.policy.IsMember(ctx, *in.ByID, groupID)
		if err != nil {
			return nil, err
		}
		if !member {
			fields["by"] = "User must be a member of this budget group."
		} else {
			out.ByID = in.ByID
		}
	}

	if len(fields) > 0 {
		return nil, apierr.Validation(fields)
	}
	return out, nil
}
