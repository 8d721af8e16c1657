/*
leave.go - Leave annotation codec

PURPOSE:
  A leave record's category and paid flag are written into its notes as a
  human-readable label, optionally followed by free text:

    "Planned Leave"                  planned, paid
    "Unplanned Leave - flu"          unplanned, paid, text "flu"
    "Unpaid Leave - overflow"        unpaid, category not recorded
    "Leave"                          other, paid

  Records written by this engine also carry the structured Annotation, so
  the notes are for display; Decode exists for legacy records that only
  have notes.

DECODING PRECEDENCE (label part only, i.e. text before the first " - "):
  1. "Unpaid Leave" or "(Unpaid)"   unpaid; category guessed from the label
  2. "Planned Leave"
  3. "Unplanned Leave"
  4. "Parental Leave"
  5. anything else                  other, paid

SEE ALSO:
  - quota.go: Buckets records by decoded annotation
  - request.go: Encodes annotations for new leave
*/
package attendance

import (
	"strings"
)

// Category is the kind of leave a day counts against.
type Category string

const (
	CategoryPlanned   Category = "planned"
	CategoryUnplanned Category = "unplanned"
	CategoryParental  Category = "parental"
	CategoryOther     Category = "other"
)

// QuotaCategories are the categories that carry an annual quota.
var QuotaCategories = []Category{CategoryPlanned, CategoryUnplanned, CategoryParental}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryPlanned, CategoryUnplanned, CategoryParental, CategoryOther:
		return true
	}
	return false
}

// Requestable reports whether leave can be requested in this category.
func (c Category) Requestable() bool {
	return c == CategoryPlanned || c == CategoryUnplanned || c == CategoryParental
}

// Title is the capitalised category name used in labels and reports.
func (c Category) Title() string {
	switch c {
	case CategoryPlanned:
		return "Planned"
	case CategoryUnplanned:
		return "Unplanned"
	case CategoryParental:
		return "Parental"
	default:
		return "Other"
	}
}

// Annotation is the structured form of a leave note.
type Annotation struct {
	Category Category `json:"category"`
	Paid     bool     `json:"paid"`
	Text     string   `json:"text,omitempty"`
}

// Label is the short description used by reports, e.g. "Planned" or
// "Unplanned (Unpaid)".
func (a Annotation) Label() string {
	switch {
	case a.Category == CategoryOther && !a.Paid:
		return "Unpaid"
	case !a.Paid:
		return a.Category.Title() + " (Unpaid)"
	default:
		return a.Category.Title()
	}
}

// Notes encodes the annotation.
func (a Annotation) Notes() string { return Encode(a.Category, a.Paid, a.Text) }

// =============================================================================
// CODEC
// =============================================================================

const (
	labelPlanned   = "Planned Leave"
	labelUnplanned = "Unplanned Leave"
	labelParental  = "Parental Leave"
	labelUnpaid    = "Unpaid Leave"
	labelOther     = "Leave"

	legacyUnpaidMarker = "(Unpaid)"
	noteSeparator      = " - "
)

// Encode renders a leave note. Unpaid leave uses the unpaid label regardless
// of category.
func Encode(category Category, paid bool, text string) string {
	label := labelOther
	switch {
	case !paid:
		label = labelUnpaid
	case category == CategoryPlanned:
		label = labelPlanned
	case category == CategoryUnplanned:
		label = labelUnplanned
	case category == CategoryParental:
		label = labelParental
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return label
	}
	return label + noteSeparator + text
}

// Decode parses a leave note. It never fails: unrecognised notes decode as
// paid leave of the other category with the whole note as text.
func Decode(note string) Annotation {
	note = strings.TrimSpace(note)
	label, text, hasText := strings.Cut(note, noteSeparator)
	text = strings.TrimSpace(text)

	a, recognised := decodeLabel(strings.TrimSpace(label))
	switch {
	case hasText:
		a.Text = text
	case !recognised:
		a.Text = note
	}
	return a
}

func decodeLabel(label string) (Annotation, bool) {
	switch {
	case strings.Contains(label, labelUnpaid) || strings.Contains(label, legacyUnpaidMarker):
		return Annotation{Category: guessCategory(label), Paid: false}, true
	case strings.Contains(label, labelPlanned):
		return Annotation{Category: CategoryPlanned, Paid: true}, true
	case strings.Contains(label, labelUnplanned):
		return Annotation{Category: CategoryUnplanned, Paid: true}, true
	case strings.Contains(label, labelParental):
		return Annotation{Category: CategoryParental, Paid: true}, true
	case label == labelOther:
		return Annotation{Category: CategoryOther, Paid: true}, true
	default:
		return Annotation{Category: CategoryOther, Paid: true}, false
	}
}

// guessCategory reads the category out of legacy composite labels such as
// "Planned (Unpaid)". "Unplanned" is checked first since it contains "planned".
func guessCategory(label string) Category {
	switch {
	case strings.Contains(label, "Unplanned"):
		return CategoryUnplanned
	case strings.Contains(label, "Planned"):
		return CategoryPlanned
	case strings.Contains(label, "Parental"):
		return CategoryParental
	default:
		return CategoryOther
	}
}

func categoryFromStatus(s Status) (Category, bool) {
	switch s {
	case StatusPlannedLeave:
		return CategoryPlanned, true
	case StatusUnplannedLeave:
		return CategoryUnplanned, true
	case StatusParentalLeave:
		return CategoryParental, true
	}
	return "", false
}

// =============================================================================
// WIRE LEAVE TYPES
// =============================================================================

// Leave types accepted on the wire.
const (
	LeaveTypePlanned   = "planned-leave"
	LeaveTypeUnplanned = "unplanned-leave"
	LeaveTypeParental  = "parental-leave"
	LeaveTypeUnpaid    = "unpaid-leave"
)

// ParseLeaveType maps a wire leave type to a category and paid flag.
// "unpaid-leave" returns an empty category: the caller keeps the record's
// existing category and only clears the paid flag.
func ParseLeaveType(s string) (Category, bool, error) {
	switch s {
	case LeaveTypePlanned:
		return CategoryPlanned, true, nil
	case LeaveTypeUnplanned:
		return CategoryUnplanned, true, nil
	case LeaveTypeParental:
		return CategoryParental, true, nil
	case LeaveTypeUnpaid:
		return "", false, nil
	}
	return "", false, invalid("leaveType", "must be one of %s, %s, %s, %s",
		LeaveTypePlanned, LeaveTypeUnplanned, LeaveTypeParental, LeaveTypeUnpaid)
}
