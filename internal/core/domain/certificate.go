package domain

// CertificateRecord holds the metadata read from a record's detail view.
// Every field is independently optional; nil means the field was not found.
type CertificateRecord struct {
	FHNumber        *string `json:"fh_number"`
	ApprovedAt      *string `json:"approved_at"`
	ExpirationDate  *string `json:"expiration_date"`
	BuildingAddress *string `json:"building_address"`
	Program         *string `json:"program"`
	Designation     *string `json:"designation"`
}

// Field names used by extractors, logs and result exports.
const (
	FieldFHNumber        = "fh_number"
	FieldApprovedAt      = "approved_at"
	FieldExpirationDate  = "expiration_date"
	FieldBuildingAddress = "building_address"
	FieldProgram         = "program"
	FieldDesignation     = "designation"
)

// Set assigns value to the named field. Unknown names are ignored.
func (c *CertificateRecord) Set(field, value string) {
	v := value
	switch field {
	case FieldFHNumber:
		c.FHNumber = &v
	case FieldApprovedAt:
		c.ApprovedAt = &v
	case FieldExpirationDate:
		c.ExpirationDate = &v
	case FieldBuildingAddress:
		c.BuildingAddress = &v
	case FieldProgram:
		c.Program = &v
	case FieldDesignation:
		c.Designation = &v
	}
}

// Found returns the number of non-nil fields.
func (c CertificateRecord) Found() int {
	n := 0
	for _, f := range []*string{c.FHNumber, c.ApprovedAt, c.ExpirationDate, c.BuildingAddress, c.Program, c.Designation} {
		if f != nil {
			n++
		}
	}
	return n
}

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
