package permissions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentifierUnmarshalShapes(t *testing.T) {
	var ids []Identifier
	payload := `["Admin", {"role_name": "HR Manager"}, {"name": " Payroll "}, {"permission_name": "leave.view"},
		{"code": "menu.view"}, null, 42, {"id": 3}, {"name": ""}]`
	require.NoError(t, json.Unmarshal([]byte(payload), &ids))

	names := make([]string, 0, len(ids))
	for _, id := range ids {
		names = append(names, id.Name)
	}
	require.Equal(t, []string{"Admin", "HR Manager", "Payroll", "leave.view", "menu.view", "", "", "", ""}, names)
}

func TestIdentifierMarshalsBareName(t *testing.T) {
	out, err := json.Marshal([]Identifier{{Name: "Admin"}})
	require.NoError(t, err)
	require.JSONEq(t, `["Admin"]`, string(out))
}

func TestParseIdentifier(t *testing.T) {
	require.Equal(t, "Admin", ParseIdentifier(map[string]any{"role_name": "Admin"}).Name)
	require.Equal(t, "Admin", ParseIdentifier(map[string]string{"name": "Admin"}).Name)
	require.Equal(t, "Admin", ParseIdentifier(json.RawMessage(`{"name":"Admin"}`)).Name)
	require.False(t, ParseIdentifier(map[string]any{"name": 7}).Valid())
	require.False(t, ParseIdentifier(3.5).Valid())
	require.False(t, ParseIdentifier((*Identifier)(nil)).Valid())
}
