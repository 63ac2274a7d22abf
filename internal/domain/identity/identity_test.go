package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" doctor ")
	assert.True(t, ok)
	assert.Equal(t, RoleDoctor, r)

	_, ok = ParseRole("ANONYMOUS")
	assert.False(t, ok, "anonymous is never a token role")

	_, ok = ParseRole("root")
	assert.False(t, ok)
}

func TestNew_FallsBackToAnonymous(t *testing.T) {
	assert.True(t, New("", RoleAdmin).IsAnonymous())
	assert.True(t, New("u1", RoleAnonymous).IsAnonymous())
	assert.True(t, New("u1", Role("ROOT")).IsAnonymous())

	id := New(" u1 ", RoleUser)
	assert.False(t, id.IsAnonymous())
	assert.Equal(t, "u1", id.SubjectID())
	assert.Equal(t, RoleUser, id.Role())
	assert.Equal(t, "USER:u1", id.String())
}

func TestZeroValueIsAnonymous(t *testing.T) {
	var id Identity
	assert.True(t, id.IsAnonymous())
	assert.Equal(t, RoleAnonymous, id.Role())
	assert.Equal(t, "anonymous", id.String())
}

func TestRoles_Has(t *testing.T) {
	assert.True(t, Authenticated.Has(RoleEmployee))
	assert.False(t, Authenticated.Has(RoleAnonymous))
	assert.True(t, All.Has(RoleAnonymous))
	assert.False(t, Roles(nil).Has(RoleAdmin))
}

func TestContext(t *testing.T) {
	assert.True(t, FromContext(context.Background()).IsAnonymous())

	ctx := WithIdentity(context.Background(), New("d1", RoleDoctor))
	got := FromContext(ctx)
	assert.Equal(t, "d1", got.SubjectID())
	assert.Equal(t, RoleDoctor, got.Role())
}
