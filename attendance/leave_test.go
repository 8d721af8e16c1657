package attendance_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/attendance/attendance"
)

func TestEncode(t *testing.T) {
	assert.Equal(t, "Planned Leave", attendance.Encode(attendance.CategoryPlanned, true, ""))
	assert.Equal(t, "Unplanned Leave - flu", attendance.Encode(attendance.CategoryUnplanned, true, "  flu "))
	assert.Equal(t, "Parental Leave", attendance.Encode(attendance.CategoryParental, true, ""))
	assert.Equal(t, "Unpaid Leave - trip", attendance.Encode(attendance.CategoryPlanned, false, "trip"))
	assert.Equal(t, "Leave", attendance.Encode(attendance.CategoryOther, true, ""))
}

func TestDecode_Precedence(t *testing.T) {
	cases := []struct {
		note string
		want attendance.Annotation
	}{
		{"Planned Leave", attendance.Annotation{Category: attendance.CategoryPlanned, Paid: true}},
		{"Unplanned Leave - dentist", attendance.Annotation{Category: attendance.CategoryUnplanned, Paid: true, Text: "dentist"}},
		{"Parental Leave", attendance.Annotation{Category: attendance.CategoryParental, Paid: true}},
		{"Unpaid Leave", attendance.Annotation{Category: attendance.CategoryOther, Paid: false}},
		// legacy composite forms
		{"Planned Leave (Unpaid)", attendance.Annotation{Category: attendance.CategoryPlanned, Paid: false}},
		{"Unplanned (Unpaid) - overflow", attendance.Annotation{Category: attendance.CategoryUnplanned, Paid: false, Text: "overflow"}},
		// unpaid wins over a category label
		{"Planned Leave Unpaid Leave", attendance.Annotation{Category: attendance.CategoryPlanned, Paid: false}},
		// unrecognised
		{"sick", attendance.Annotation{Category: attendance.CategoryOther, Paid: true, Text: "sick"}},
		{"", attendance.Annotation{Category: attendance.CategoryOther, Paid: true}},
	}
	for _, tc := range cases {
		t.Run(tc.note, func(t *testing.T) {
			assert.Equal(t, tc.want, attendance.Decode(tc.note))
		})
	}
}

func TestDecode_OnlyLabelIsMatched(t *testing.T) {
	// Free text mentioning another label does not change the category
	a := attendance.Decode("Planned Leave - swapped from Unpaid Leave - see HR")

	assert.Equal(t, attendance.CategoryPlanned, a.Category)
	assert.True(t, a.Paid)
	assert.Equal(t, "swapped from Unpaid Leave - see HR", a.Text)
}

func TestCodec_RoundTrip(t *testing.T) {
	texts := []string{"", "family trip", "a - b"}
	type combo struct {
		category attendance.Category
		paid     bool
	}
	combos := []combo{
		{attendance.CategoryPlanned, true},
		{attendance.CategoryUnplanned, true},
		{attendance.CategoryParental, true},
		{attendance.CategoryOther, true},
		{attendance.CategoryOther, false},
	}
	for _, c := range combos {
		for _, text := range texts {
			got := attendance.Decode(attendance.Encode(c.category, c.paid, text))
			assert.Equal(t, attendance.Annotation{Category: c.category, Paid: c.paid, Text: text}, got,
				"%s paid=%v text=%q", c.category, c.paid, text)
		}
	}
}

func TestRecordAnnotation(t *testing.T) {
	// Structured fields win over notes
	structured := attendance.Record{
		Status: attendance.StatusAbsent,
		Notes:  "Unpaid Leave",
		Leave:  &attendance.Annotation{Category: attendance.CategoryUnplanned, Paid: false},
	}
	assert.Equal(t, attendance.CategoryUnplanned, structured.Annotation().Category)

	// Legacy status supplies the category when notes carry none
	legacy := attendance.Record{Status: attendance.StatusParentalLeave}
	assert.Equal(t, attendance.Annotation{Category: attendance.CategoryParental, Paid: true}, legacy.Annotation())
}

func TestAnnotationLabel(t *testing.T) {
	assert.Equal(t, "Planned", attendance.Annotation{Category: attendance.CategoryPlanned, Paid: true}.Label())
	assert.Equal(t, "Unplanned (Unpaid)", attendance.Annotation{Category: attendance.CategoryUnplanned}.Label())
	assert.Equal(t, "Unpaid", attendance.Annotation{Category: attendance.CategoryOther}.Label())
	assert.Equal(t, "Other", attendance.Annotation{Category: attendance.CategoryOther, Paid: true}.Label())
}

func TestParseLeaveType(t *testing.T) {
	c, paid, err := attendance.ParseLeaveType("parental-leave")
	require.NoError(t, err)
	assert.Equal(t, attendance.CategoryParental, c)
	assert.True(t, paid)

	c, paid, err = attendance.ParseLeaveType("unpaid-leave")
	require.NoError(t, err)
	assert.Empty(t, c)
	assert.False(t, paid)

	_, _, err = attendance.ParseLeaveType("sabbatical")
	assert.ErrorIs(t, err, attendance.ErrValidation)
}
