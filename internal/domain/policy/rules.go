package policy

import (
	"pet-clinic-backend/internal/domain/catalog"
	"pet-clinic-backend/internal/domain/identity"
)

var (
	admin        = identity.Roles{identity.RoleAdmin}
	staff        = identity.Roles{identity.RoleAdmin, identity.RoleEmployee}
	clinical     = identity.Roles{identity.RoleDoctor, identity.RoleAdmin}
	clinicalTeam = identity.Roles{identity.RoleDoctor, identity.RoleAdmin, identity.RoleEmployee}
	anyone       = identity.Authenticated
)

func allow(resource string, action Action, roles identity.Roles) Rule {
	return Rule{Resource: resource, Action: action, AllowedRoles: roles}
}

func public(resource string, action Action) Rule {
	return Rule{Resource: resource, Action: action, Public: true}
}

// owned: roles pasan sin condición; el resto de autenticados pasa si es dueño.
func owned(resource string, action Action, roles identity.Roles, path OwnershipPath) Rule {
	return Rule{Resource: resource, Action: action, AllowedRoles: roles, RequiresOwnership: true, Ownership: path}
}

var (
	petOwner   = Via("ownerId", "pet")
	selfRecord = Direct("id")
)

// DefaultRules es la tabla de la clínica. Agregar un recurso es editar esta lista.
func DefaultRules() []Rule {
	return []Rule{
		public(catalog.User, ActionCreate),
		allow(catalog.User, ActionReadMany, staff),
		owned(catalog.User, ActionReadOne, staff, selfRecord),
		// solo alcanzable por /users/me: identity == target por construcción
		allow(catalog.User, ActionUpdate, anyone),
		allow(catalog.User, ActionDelete, admin),

		allow(catalog.Pet, ActionCreate, anyone),
		allow(catalog.Pet, ActionReadMany, staff),
		owned(catalog.Pet, ActionReadOne, staff, Direct("ownerId")),
		owned(catalog.Pet, ActionUpdate, staff, Direct("ownerId")),
		owned(catalog.Pet, ActionDelete, admin, Direct("ownerId")),

		allow(catalog.Appointment, ActionCreate, anyone),
		allow(catalog.Appointment, ActionReadMany, clinicalTeam),
		owned(catalog.Appointment, ActionReadOne, clinicalTeam, petOwner),
		allow(catalog.Appointment, ActionUpdate, clinicalTeam),
		allow(catalog.Appointment, ActionDelete, admin),
		owned(catalog.Appointment, ActionCancel, staff, petOwner),

		allow(catalog.MedicalRecord, ActionCreate, clinicalTeam),
		allow(catalog.MedicalRecord, ActionReadOne, clinicalTeam),
		allow(catalog.MedicalRecord, ActionReadMany, clinicalTeam),
		allow(catalog.MedicalRecord, ActionUpdate, clinicalTeam),
		allow(catalog.MedicalRecord, ActionDelete, clinical),

		allow(catalog.Prescription, ActionCreate, clinical),
		allow(catalog.Prescription, ActionReadOne, clinical),
		allow(catalog.Prescription, ActionReadMany, clinical),
		allow(catalog.Prescription, ActionUpdate, clinical),
		allow(catalog.Prescription, ActionDelete, clinical),

		allow(catalog.PrescriptionDetail, ActionCreate, clinical),
		allow(catalog.PrescriptionDetail, ActionReadOne, clinical),
		allow(catalog.PrescriptionDetail, ActionReadMany, clinical),
		allow(catalog.PrescriptionDetail, ActionUpdate, clinical),
		allow(catalog.PrescriptionDetail, ActionDelete, clinical),

		allow(catalog.MedicationPackage, ActionCreate, staff),
		allow(catalog.MedicationPackage, ActionReadOne, clinicalTeam),
		allow(catalog.MedicationPackage, ActionReadMany, clinicalTeam),
		allow(catalog.MedicationPackage, ActionUpdate, staff),
		allow(catalog.MedicationPackage, ActionDelete, admin),

		allow(catalog.Medicine, ActionCreate, staff),
		allow(catalog.Medicine, ActionReadOne, clinicalTeam),
		allow(catalog.Medicine, ActionReadMany, clinicalTeam),
		allow(catalog.Medicine, ActionUpdate, staff),
		allow(catalog.Medicine, ActionDelete, admin),

		allow(catalog.Room, ActionCreate, staff),
		allow(catalog.Room, ActionReadOne, anyone),
		allow(catalog.Room, ActionReadMany, anyone),
		allow(catalog.Room, ActionUpdate, staff),
		allow(catalog.Room, ActionDelete, admin),

		allow(catalog.BoardingReservation, ActionCreate, anyone),
		allow(catalog.BoardingReservation, ActionReadMany, staff),
		owned(catalog.BoardingReservation, ActionReadOne, staff, petOwner),
		allow(catalog.BoardingReservation, ActionUpdate, staff),
		owned(catalog.BoardingReservation, ActionDelete, admin, petOwner),
		owned(catalog.BoardingReservation, ActionCancel, admin, petOwner),

		allow(catalog.ServiceBooking, ActionCreate, anyone),
		allow(catalog.ServiceBooking, ActionReadMany, staff),
		owned(catalog.ServiceBooking, ActionReadOne, staff, petOwner),
		allow(catalog.ServiceBooking, ActionUpdate, staff),
		owned(catalog.ServiceBooking, ActionDelete, admin, petOwner),
		owned(catalog.ServiceBooking, ActionCancel, admin, petOwner),

		allow(catalog.ServiceOption, ActionCreate, staff),
		public(catalog.ServiceOption, ActionReadOne),
		public(catalog.ServiceOption, ActionReadMany),
		allow(catalog.ServiceOption, ActionUpdate, staff),
		allow(catalog.ServiceOption, ActionDelete, admin),

		allow(catalog.Service, ActionCreate, staff),
		public(catalog.Service, ActionReadOne),
		public(catalog.Service, ActionReadMany),
		allow(catalog.Service, ActionUpdate, staff),
		allow(catalog.Service, ActionDelete, admin),

		allow(catalog.Payment, ActionCreate, anyone),
		allow(catalog.Payment, ActionReadMany, staff),
		owned(catalog.Payment, ActionReadOne, staff, Direct("userId")),
		allow(catalog.Payment, ActionUpdate, staff),
		allow(catalog.Payment, ActionDelete, admin),

		allow(catalog.Notification, ActionCreate, staff),
		owned(catalog.Notification, ActionReadOne, admin, Direct("userId")),
		allow(catalog.Notification, ActionReadMany, admin),
		owned(catalog.Notification, ActionUpdate, admin, Direct("userId")),
		owned(catalog.Notification, ActionDelete, admin, Direct("userId")),
	}
}

// Cancellable son los recursos con acción CANCEL.
func Cancellable() []string {
	return []string{catalog.Appointment, catalog.BoardingReservation, catalog.ServiceBooking}
}

// RequiredActions es el conjunto sobre el que la tabla debe ser total.
func RequiredActions() map[string][]Action {
	out := make(map[string][]Action, len(catalog.Resources()))
	for _, r := range catalog.Resources() {
		out[r] = append([]Action(nil), CRUD...)
	}
	for _, r := range Cancellable() {
		out[r] = append(out[r], ActionCancel)
	}
	return out
}

// Default arma y valida la tabla de la clínica; un error es fatal en el arranque.
func Default() (*Table, error) {
	t, err := NewTable(DefaultRules())
	if err != nil {
		return nil, err
	}
	if err := t.Validate(RequiredActions()); err != nil {
		return nil, err
	}
	return t, nil
}
