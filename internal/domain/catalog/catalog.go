// Package catalog declara los recursos de la clínica y su esquema relacional.
// Tablas y paths se derivan del nombre: "medicalRecord" => medical_records, /medical-records.
package catalog

import (
	"github.com/gertd/go-pluralize"
	"github.com/iancoleman/strcase"

	"pet-clinic-backend/internal/ports/dataengine"
)

const (
	User                = "user"
	Pet                 = "pet"
	Appointment         = "appointment"
	MedicalRecord       = "medicalRecord"
	Prescription        = "prescription"
	PrescriptionDetail  = "prescriptionDetail"
	MedicationPackage   = "medicationPackage"
	Medicine            = "medicine"
	Room                = "room"
	BoardingReservation = "boardingReservation"
	ServiceBooking      = "serviceBooking"
	ServiceOption       = "serviceOption"
	Service             = "service"
	Payment             = "payment"
	Notification        = "notification"
)

// Resources es el set documentado; el policy table debe ser total sobre él.
func Resources() []string {
	return []string{
		User, Pet, Appointment, MedicalRecord, Prescription, PrescriptionDetail,
		MedicationPackage, Medicine, Room, BoardingReservation, ServiceBooking,
		ServiceOption, Service, Payment, Notification,
	}
}

type resourceSpec struct {
	name      string
	fields    []string
	relations []dataengine.Relation
	validate  map[string]string
}

func rel(name, fk, target string) dataengine.Relation {
	return dataengine.Relation{Name: name, ForeignKey: fk, Target: target}
}

var specs = []resourceSpec{
	{
		name:     User,
		fields:   []string{"email", "fullName", "phone", "role", "createdAt", "updatedAt"},
		validate: map[string]string{"email": "required,email", "fullName": "required,max=120", "role": "omitempty,oneof=USER EMPLOYEE DOCTOR ADMIN"},
	},
	{
		name:      Pet,
		fields:    []string{"ownerId", "name", "species", "breed", "sex", "birthDate", "microchip", "notes", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("owner", "ownerId", User)},
		validate:  map[string]string{"ownerId": "required", "name": "required,max=80", "species": "required"},
	},
	{
		name:      Appointment,
		fields:    []string{"petId", "doctorId", "scheduledAt", "reason", "status", "notes", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("pet", "petId", Pet), rel("doctor", "doctorId", User)},
		validate:  map[string]string{"petId": "required", "scheduledAt": "required"},
	},
	{
		name:      MedicalRecord,
		fields:    []string{"petId", "doctorId", "appointmentId", "diagnosis", "treatment", "notes", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("pet", "petId", Pet), rel("doctor", "doctorId", User), rel("appointment", "appointmentId", Appointment)},
	},
	{
		name:      Prescription,
		fields:    []string{"medicalRecordId", "doctorId", "notes", "issuedAt", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("medicalRecord", "medicalRecordId", MedicalRecord), rel("doctor", "doctorId", User)},
	},
	{
		name:      PrescriptionDetail,
		fields:    []string{"prescriptionId", "medicineId", "dosage", "frequency", "durationDays", "quantity"},
		relations: []dataengine.Relation{rel("prescription", "prescriptionId", Prescription), rel("medicine", "medicineId", Medicine)},
	},
	{name: MedicationPackage, fields: []string{"name", "description", "price", "createdAt", "updatedAt"}},
	{
		name:      Medicine,
		fields:    []string{"medicationPackageId", "name", "description", "unit", "price", "stock", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("medicationPackage", "medicationPackageId", MedicationPackage)},
	},
	{
		name:     Room,
		fields:   []string{"name", "type", "capacity", "pricePerNight", "status"},
		validate: map[string]string{"name": "required,max=60"},
	},
	{
		name:      BoardingReservation,
		fields:    []string{"petId", "roomId", "checkIn", "checkOut", "status", "notes", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("pet", "petId", Pet), rel("room", "roomId", Room)},
		validate:  map[string]string{"petId": "required", "roomId": "required", "checkIn": "required"},
	},
	{
		name:      ServiceBooking,
		fields:    []string{"petId", "serviceId", "serviceOptionId", "bookedAt", "status", "notes", "createdAt", "updatedAt"},
		relations: []dataengine.Relation{rel("pet", "petId", Pet), rel("service", "serviceId", Service), rel("serviceOption", "serviceOptionId", ServiceOption)},
		validate:  map[string]string{"petId": "required", "serviceId": "required"},
	},
	{
		name:      ServiceOption,
		fields:    []string{"serviceId", "name", "price", "durationMinutes"},
		relations: []dataengine.Relation{rel("service", "serviceId", Service)},
	},
	{name: Service, fields: []string{"name", "description", "basePrice", "active"}},
	{
		name:      Payment,
		fields:    []string{"userId", "amount", "currency", "method", "status", "referenceType", "referenceId", "paidAt", "createdAt"},
		relations: []dataengine.Relation{rel("user", "userId", User)},
		validate:  map[string]string{"userId": "required", "amount": "required", "currency": "omitempty,iso4217"},
	},
	{
		name:      Notification,
		fields:    []string{"userId", "title", "message", "read", "createdAt"},
		relations: []dataengine.Relation{rel("user", "userId", User)},
		validate:  map[string]string{"userId": "required", "title": "required,max=140"},
	},
}

// Definitions construye las definiciones de tabla/path/columnas.
func Definitions() []dataengine.ResourceDef {
	pl := pluralize.NewClient()

	out := make([]dataengine.ResourceDef, 0, len(specs))
	for _, s := range specs {
		table := pl.Plural(strcase.ToSnake(s.name))

		fields := make([]dataengine.Field, 0, len(s.fields)+1)
		fields = append(fields, dataengine.Field{Name: dataengine.FieldID, Column: "id"})
		for _, f := range s.fields {
			fields = append(fields, dataengine.Field{Name: f, Column: strcase.ToSnake(f)})
		}

		out = append(out, dataengine.ResourceDef{
			Name:       s.name,
			Table:      table,
			Path:       strcase.ToKebab(table),
			Fields:     fields,
			Relations:  s.relations,
			Validation: s.validate,
		})
	}
	return out
}

// Schema arma el esquema completo. Un error aquí es un bug de declaración.
func Schema() (*dataengine.Schema, error) {
	return dataengine.NewSchema(Definitions()...)
}
