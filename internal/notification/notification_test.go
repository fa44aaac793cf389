// ABOUTME: Tests for notification validation, role parsing, and cursor handling
// ABOUTME: Covers metadata bounds and the replay cursor degradation rules

package notification

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validNotification() *Notification {
	return &Notification{
		UserID: "u1",
		Role:   RoleClient,
		Title:  "order shipped",
	}
}

func TestParseRole(t *testing.T) {
	tests := []struct {
		input   string
		want    Role
		wantErr bool
	}{
		{"CLIENT", RoleClient, false},
		{"client", RoleClient, false},
		{" worker ", RoleWorker, false},
		{"ADMIN", RoleAdmin, false},
		{"MANAGER", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseRole(tt.input)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownRole, "input %q", tt.input)
			continue
		}
		require.NoError(t, err, "input %q", tt.input)
		assert.Equal(t, tt.want, got)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	n := validNotification()
	require.NoError(t, n.Validate())

	n = validNotification()
	n.UserID = "  "
	assert.Error(t, n.Validate())

	n = validNotification()
	n.Title = ""
	assert.Error(t, n.Validate())

	n = validNotification()
	n.Role = "MANAGER"
	assert.ErrorIs(t, n.Validate(), ErrUnknownRole)
}

func TestValidate_MetadataBounds(t *testing.T) {
	n := validNotification()
	n.Metadata = map[string]string{"order_id": "42"}
	require.NoError(t, n.Validate())

	// Too many entries
	n = validNotification()
	n.Metadata = make(map[string]string)
	for i := 0; i < MaxMetadataEntries+1; i++ {
		n.Metadata[strings.Repeat("k", i+1)] = "v"
	}
	assert.Error(t, n.Validate())

	// Key too long
	n = validNotification()
	n.Metadata = map[string]string{strings.Repeat("k", MaxMetadataKeyLen+1): "v"}
	assert.Error(t, n.Validate())

	// Value too long
	n = validNotification()
	n.Metadata = map[string]string{"k": strings.Repeat("v", MaxMetadataValueLen+1)}
	assert.Error(t, n.Validate())
}

func TestKey_Equality(t *testing.T) {
	a := Key{UserID: "u1", Role: RoleWorker}
	b := Key{UserID: "u1", Role: RoleWorker}
	c := Key{UserID: "u1", Role: RoleClient}

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Equal(t, "u1:WORKER", a.String())
}

func TestParseCursor(t *testing.T) {
	id, ok := ParseCursor("42")
	require.True(t, ok)
	assert.Equal(t, int64(42), id)

	_, ok = ParseCursor("")
	assert.False(t, ok)

	_, ok = ParseCursor("not-a-number")
	assert.False(t, ok)

	_, ok = ParseCursor("-3")
	assert.False(t, ok)
}

func TestNewEvent(t *testing.T) {
	n := validNotification()
	n.ID = 7

	ev := NewEvent(n)
	assert.Equal(t, "7", ev.ID)
	assert.Equal(t, EventNotification, ev.Kind)
	require.NotNil(t, ev.Notification)
	assert.Equal(t, "order shipped", ev.Notification.Title)
}

func TestNewHeartbeat(t *testing.T) {
	hb := NewHeartbeat("12")
	assert.Equal(t, "12", hb.ID)
	assert.Equal(t, EventHeartbeat, hb.Kind)
	assert.Nil(t, hb.Notification)

	hb = NewHeartbeat("")
	assert.Equal(t, "0", hb.ID)
}
