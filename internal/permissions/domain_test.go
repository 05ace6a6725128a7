package permissions

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCapabilitySetDefaultsToFalse(t *testing.T) {
	var zero CapabilitySet
	for _, c := range Capabilities() {
		require.False(t, zero.Get(c))
	}
	require.Empty(t, zero.Granted())
}

func TestCapabilitySetWith(t *testing.T) {
	set := NewCapabilitySet().With(CapSeeProjects, true)
	require.True(t, set.Get(CapSeeProjects))
	require.False(t, set.Get(CapEditProjects))

	revoked := set.With(CapSeeProjects, false)
	require.False(t, revoked.Get(CapSeeProjects))
	// the original is untouched
	require.True(t, set.Get(CapSeeProjects))
}

func TestUnionProperties(t *testing.T) {
	a := NewCapabilitySet(CapSeeProjects, CapSeeTasks)
	b := NewCapabilitySet(CapSeeTasks, CapEditTasks)
	c := NewCapabilitySet(CapDeleteUsers)

	require.True(t, a.Union(b).Equal(b.Union(a)), "commutative")
	require.True(t, a.Union(b).Union(c).Equal(a.Union(b.Union(c))), "associative")
	require.True(t, a.Union(a).Equal(a), "idempotent")
	require.True(t, a.Union(NewCapabilitySet()).Equal(a), "identity")

	merged := a.Union(b)
	require.True(t, merged.Get(CapSeeProjects))
	require.True(t, merged.Get(CapSeeTasks))
	require.True(t, merged.Get(CapEditTasks))
	require.False(t, merged.Get(CapDeleteUsers))
}

func TestUnionNeverRevokes(t *testing.T) {
	a := AllCapabilities()
	b := NewCapabilitySet()
	require.True(t, a.Union(b).Equal(a))
}

func TestGrantedFollowsEnumerationOrder(t *testing.T) {
	set := NewCapabilitySet(CapSeeRoles, CapSeeUsers, CapSeeProjects)
	require.Equal(t, []Capability{CapSeeUsers, CapSeeProjects, CapSeeRoles}, set.Granted())
}

func TestCapabilitySetJSONRoundTrip(t *testing.T) {
	set := NewCapabilitySet(CapSeeProjects, CapEditSecuritySettings)
	data, err := json.Marshal(set)
	require.NoError(t, err)

	// the encoding is total: every known name appears
	var raw map[string]bool
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Len(t, raw, len(Capabilities()))
	require.True(t, raw["projects.see"])
	require.False(t, raw["projects.edit"])

	var decoded CapabilitySet
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.True(t, decoded.Equal(set))
}

func TestCapabilitySetJSONDropsUnknownNames(t *testing.T) {
	var decoded CapabilitySet
	require.NoError(t, json.Unmarshal([]byte(`{"projects.see":true,"timetravel.engage":true}`), &decoded))
	require.True(t, decoded.Get(CapSeeProjects))
	require.Len(t, decoded.Granted(), 1)
}
