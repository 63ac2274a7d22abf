package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_CoversEveryResource(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	for _, name := range Resources() {
		def, err := s.Resource(name)
		require.NoError(t, err, name)
		assert.NotEmpty(t, def.Table, name)
		assert.NotEmpty(t, def.Path, name)
		_, ok := def.Field("id")
		assert.True(t, ok, name)
	}
	assert.Len(t, s.Resources(), len(Resources()))
}

func TestDefinitions_DerivedNames(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	cases := []struct {
		resource string
		table    string
		path     string
	}{
		{Pet, "pets", "pets"},
		{MedicalRecord, "medical_records", "medical-records"},
		{BoardingReservation, "boarding_reservations", "boarding-reservations"},
		{ServiceBooking, "service_bookings", "service-bookings"},
	}
	for _, tc := range cases {
		def, err := s.Resource(tc.resource)
		require.NoError(t, err)
		assert.Equal(t, tc.table, def.Table)
		assert.Equal(t, tc.path, def.Path)
	}

	pet, _ := s.Resource(Pet)
	f, ok := pet.Field("ownerId")
	require.True(t, ok)
	assert.Equal(t, "owner_id", f.Column)
}

func TestOwnershipPathsResolve(t *testing.T) {
	s, err := Schema()
	require.NoError(t, err)

	for _, tc := range []struct{ resource, path string }{
		{Pet, "ownerId"},
		{Appointment, "pet.ownerId"},
		{ServiceBooking, "pet.ownerId"},
		{BoardingReservation, "pet.ownerId"},
		{MedicalRecord, "doctorId"},
		{Payment, "userId"},
		{Notification, "userId"},
		{User, "id"},
	} {
		_, _, err := s.ResolvePath(tc.resource, tc.path)
		assert.NoError(t, err, "%s %s", tc.resource, tc.path)
	}
}
