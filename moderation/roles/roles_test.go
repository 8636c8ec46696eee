package roles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var allRoles = []Role{RoleUser, RoleModerator, RoleAdmin, RoleSuperAdmin, RoleOwner}

func TestRoleOrder(t *testing.T) {
	assert := assert.New(t)

	for i := 1; i < len(allRoles); i++ {
		assert.Greater(allRoles[i].Rank(), allRoles[i-1].Rank())
	}
}

func TestCanModerate(t *testing.T) {
	assert := assert.New(t)

	for _, a := range allRoles {
		for _, b := range allRoles {
			assert.Equal(a.Rank() > b.Rank(), CanModerate(a, b), "actor=%s target=%s", a, b)
		}
		// never against an equal role, including self
		assert.False(CanModerate(a, a))
	}

	assert.True(CanModerate(RoleOwner, RoleSuperAdmin))
	assert.True(CanModerate(RoleModerator, RoleUser))
	assert.False(CanModerate(RoleModerator, RoleAdmin))
}

func TestParseRole(t *testing.T) {
	assert := assert.New(t)

	r, err := ParseRole("super_admin")
	assert.NoError(err)
	assert.Equal(RoleSuperAdmin, r)

	_, err = ParseRole("superadmin")
	assert.Error(err)
	_, err = ParseRole("")
	assert.Error(err)
}

func TestMax(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(RoleAdmin, Max(RoleAdmin, RoleModerator))
	assert.Equal(RoleAdmin, Max(RoleModerator, RoleAdmin))
	assert.Equal(RoleUser, Max(RoleUser, RoleUser))
}
