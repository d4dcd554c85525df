package forms

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/hrconsole/internal/client"
	"github.com/charlesng35/hrconsole/internal/menutree"
	"github.com/charlesng35/hrconsole/pkg/validator"
)

func setLabel(label string) Change[MenuValues] {
	return Change[MenuValues]{Field: "label", Update: func(v MenuValues) MenuValues {
		v.Label = label
		return v
	}}
}

func TestReduceDoesNotMutateInput(t *testing.T) {
	start := New(NewMenuValues())

	next := Reduce(start, setLabel("Reports"))
	next = Reduce(next, Change[MenuValues]{Field: "role_ids", Update: func(v MenuValues) MenuValues {
		v.RoleIDs = ToggleUint(v.RoleIDs, 2)
		return v
	}})

	require.Equal(t, "", start.Values.Label)
	require.Empty(t, start.Touched)
	require.Empty(t, start.Values.RoleIDs)
	require.False(t, start.Dirty())

	require.Equal(t, "Reports", next.Values.Label)
	require.Equal(t, []uint{2}, next.Values.RoleIDs)
	require.True(t, next.Touched["label"])
	require.True(t, next.Dirty())
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	state := Reduce(New(NewMenuValues()), Validate[MenuValues]{})
	require.False(t, state.Valid())
	require.Equal(t, "name is required", state.Errors["name"])
	require.Contains(t, state.Errors, "label")

	state = Reduce(state, Change[MenuValues]{Field: "url", Update: func(v MenuValues) MenuValues {
		v.Name, v.Label, v.URL = "reports", "Reports", "reports"
		return v
	}})
	state = Reduce(state, Validate[MenuValues]{})
	require.Equal(t, []string{"url"}, keys(state.Errors))
}

func TestFieldErrorWaitsForTouchOrSubmit(t *testing.T) {
	state := Reduce(New(NewMenuValues()), Validate[MenuValues]{})
	require.Empty(t, state.FieldError("name"))

	state = Reduce(state, SubmitStarted[MenuValues]{})
	require.Equal(t, "name is required", state.FieldError("name"))
}

func TestSubmitLifecycle(t *testing.T) {
	state := New(NewMenuValues())

	state = Reduce(state, SubmitStarted[MenuValues]{})
	require.False(t, state.Submitting)
	require.Equal(t, 1, state.SubmitCount)
	require.NotEmpty(t, state.Errors)

	// after a failed attempt every change revalidates
	state = Reduce(state, Change[MenuValues]{Field: "name", Update: func(v MenuValues) MenuValues {
		v.Name = "reports"
		return v
	}})
	require.NotContains(t, state.Errors, "name")
	require.Contains(t, state.Errors, "label")

	state = Reduce(state, setLabel("Reports"))
	require.True(t, state.Valid())

	state = Reduce(state, SubmitStarted[MenuValues]{})
	require.True(t, state.Submitting)
	require.Equal(t, 2, state.SubmitCount)

	failed := Reduce(state, SubmitFailed[MenuValues]{Err: errors.New("conflict: Menu name already exists (MENU_EXISTS)")})
	require.False(t, failed.Submitting)
	require.Contains(t, failed.SubmitError, "MENU_EXISTS")
	require.True(t, state.Submitting)

	done := Reduce(state, SubmitSucceeded[MenuValues]{})
	require.False(t, done.Submitting)
	require.False(t, done.Dirty())
	require.Equal(t, "Reports", done.Initial.Label)
	require.Empty(t, done.SubmitError)
}

func TestSubmitFailedMergesFieldErrors(t *testing.T) {
	state := Reduce(New(NewMenuValues()), SubmitFailed[MenuValues]{Err: validator.ValidationErrors{
		{Field: "menu_order", Tag: "gte", Param: "0"},
	}})
	require.Equal(t, "menu order must be greater than or equal to 0", state.Errors["menu_order"])

	state = Reduce(state, SubmitFailed[MenuValues]{})
	require.Equal(t, "submit failed", state.SubmitError)
}

func TestSubmitFailedMergesServerFieldErrors(t *testing.T) {
	state := Reduce(New(NewMenuValues()), setLabel("Reports"))
	state = Reduce(state, SubmitStarted[MenuValues]{})
	require.True(t, state.Submitting)

	err := fmt.Errorf("create menu: %w", &client.Error{
		Kind:    client.KindValidation,
		Status:  400,
		Code:    "VALIDATION_FAILED",
		Message: "validation failed",
		Fields:  map[string]string{"name": "name is required"},
	})
	state = Reduce(state, SubmitFailed[MenuValues]{Err: err})
	require.False(t, state.Submitting)
	require.Equal(t, "name is required", state.Errors["name"])
	require.Equal(t, "name is required", state.FieldError("name"))
	require.False(t, state.Valid())
}

func TestReset(t *testing.T) {
	state := Reduce(New(NewMenuValues()), setLabel("Draft"))
	state = Reduce(state, SubmitStarted[MenuValues]{})

	reset := Reduce(state, Reset[MenuValues]{})
	require.Equal(t, "", reset.Values.Label)
	require.Zero(t, reset.SubmitCount)
	require.Empty(t, reset.Touched)
	require.Empty(t, reset.Errors)

	loaded := MenuValues{Name: "budgets", Label: "Budgets"}
	reset = Reduce(state, Reset[MenuValues]{Values: &loaded})
	require.Equal(t, "Budgets", reset.Values.Label)
	require.False(t, reset.Dirty())
}

func TestReduceNilActionReturnsState(t *testing.T) {
	state := New(RoleValues{Name: "Finance"})
	require.Equal(t, state, Reduce[RoleValues](state, nil))
}

func TestToggleHelpers(t *testing.T) {
	ids := []uint{1, 2}
	added := ToggleUint(ids, 3)
	removed := ToggleUint(added, 1)

	require.Equal(t, []uint{1, 2}, ids)
	require.Equal(t, []uint{1, 2, 3}, added)
	require.Equal(t, []uint{2, 3}, removed)
	require.Equal(t, []string{"menu.view"}, ToggleString(nil, "menu.view"))
	require.Empty(t, ToggleString([]string{"menu.view"}, "menu.view"))

	require.Equal(t, []uint{1, 2}, SetMember(ids, 2, true))
	require.Equal(t, []uint{1}, SetMember(ids, 2, false))
	require.Equal(t, []uint{1, 2}, SetMember(ids, 9, false))
	require.Equal(t, []string{}, SetMember[string](nil, "x", false))
}

func TestMenuValuesRoundTrip(t *testing.T) {
	parent := uint(3)
	menu := client.Menu{Record: menutree.Record{
		ID: 4, ParentID: &parent, Name: "leave-approvals", Label: "Approvals", URL: "/leave/approvals",
		Order: 1, Active: true, PermissionIDs: []string{"leave.approve"},
	}}

	values := MenuValuesFrom(menu)
	require.Equal(t, []uint{}, values.RoleIDs)
	*values.ParentID = 9
	require.Equal(t, uint(3), *menu.ParentID)

	input := values.Input()
	require.NotNil(t, input.RoleIDs)
	require.Equal(t, []string{"leave.approve"}, input.PermissionIDs)
	require.True(t, *input.IsActive)
	require.Equal(t, 1, input.MenuOrder)
}

func TestRoleValues(t *testing.T) {
	state := Reduce(New(RoleValues{}), SubmitStarted[RoleValues]{})
	require.Equal(t, "role name is required", state.Errors["role_name"])

	values := RoleValuesFrom(client.Role{Name: "Finance", PermissionIDs: nil})
	require.Equal(t, []string{}, values.PermissionIDs)
	require.Equal(t, "Finance", values.Input().Name)
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
