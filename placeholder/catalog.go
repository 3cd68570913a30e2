package placeholder

import (
	"strings"
)

// Well-known field names used by the export pipeline.
const (
	FieldCertificateID   = "certificate_id"
	FieldRecipientName   = "recipient_name"
	FieldVerificationURL = "verification_url"
)

var catalog = []Definition{
	{
		Key:         "{recipient_name}",
		Label:       "Recipient Name",
		Category:    CategoryRecipient,
		Description: "Full name of the certificate recipient",
		SampleValue: "Jane Doe",
	},
	{
		Key:         "{recipient_email}",
		Label:       "Recipient Email",
		Category:    CategoryRecipient,
		Description: "Email address of the recipient",
		SampleValue: "jane.doe@example.com",
	},
	{
		Key:         "{recipient_organization}",
		Label:       "Organization",
		Category:    CategoryRecipient,
		Description: "Organization or institution of the recipient",
		SampleValue: "Example University",
	},
	{
		Key:         "{event_name}",
		Label:       "Event Name",
		Category:    CategoryEvent,
		Description: "Name of the event",
		SampleValue: "Annual Tech Summit 2024",
	},
	{
		Key:         "{event_date}",
		Label:       "Event Date",
		Category:    CategoryEvent,
		Description: "Date or date range of the event",
		SampleValue: "March 15-17, 2024",
	},
	{
		Key:         "{event_location}",
		Label:       "Event Location",
		Category:    CategoryEvent,
		Description: "Venue or city of the event",
		SampleValue: "San Francisco, CA",
	},
	{
		Key:         "{certificate_id}",
		Label:       "Certificate ID",
		Category:    CategoryCertificate,
		Description: "Unique certificate identifier",
		SampleValue: "CERT-2024-001234",
	},
	{
		Key:         "{certificate_type}",
		Label:       "Certificate Type",
		Category:    CategoryCertificate,
		Description: "Kind of certificate, for example participation or achievement",
		SampleValue: "Certificate of Participation",
	},
	{
		Key:         "{issue_date}",
		Label:       "Issue Date",
		Category:    CategoryCertificate,
		Description: "Date the certificate was issued",
		SampleValue: "March 17, 2024",
	},
	{
		Key:         "{issuer_name}",
		Label:       "Issuer Name",
		Category:    CategoryCertificate,
		Description: "Person or organization issuing the certificate",
		SampleValue: "Event Organizing Committee",
	},
	{
		Key:         "{qr_code}",
		Label:       "QR Code",
		Category:    CategoryCertificate,
		Description: "QR code linking to the verification page",
		SampleValue: "[QR Code]",
	},
	{
		Key:         "{verification_url}",
		Label:       "Verification URL",
		Category:    CategoryCertificate,
		Description: "Public URL where the certificate can be verified",
		SampleValue: "https://example.com/verify/CERT-2024-001234",
	},
	{
		Key:         "{score}",
		Label:       "Score",
		Category:    CategoryCustom,
		Description: "Score achieved by the recipient",
		SampleValue: "95",
	},
	{
		Key:         "{rank}",
		Label:       "Rank",
		Category:    CategoryCustom,
		Description: "Rank or placement of the recipient",
		SampleValue: "1st Place",
	},
	{
		Key:         "{custom_field_1}",
		Label:       "Custom Field 1",
		Category:    CategoryCustom,
		Description: "Free-form custom value",
		SampleValue: "Custom Value 1",
	},
	{
		Key:         "{custom_field_2}",
		Label:       "Custom Field 2",
		Category:    CategoryCustom,
		Description: "Free-form custom value",
		SampleValue: "Custom Value 2",
	},
}

var categoryOrder = []Category{
	CategoryRecipient,
	CategoryEvent,
	CategoryCertificate,
	CategoryCustom,
}

// Catalog returns a copy of the ordered placeholder catalog.
func Catalog() []Definition {
	out := make([]Definition, len(catalog))
	copy(out, catalog)
	return out
}

// Categories returns the category names in display order.
func Categories() []Category {
	out := make([]Category, len(categoryOrder))
	copy(out, categoryOrder)
	return out
}

// ByCategory groups the catalog by category, preserving catalog order.
func ByCategory() map[Category][]Definition {
	grouped := make(map[Category][]Definition, len(categoryOrder))
	for _, category := range categoryOrder {
		grouped[category] = []Definition{}
	}
	for _, def := range catalog {
		grouped[def.Category] = append(grouped[def.Category], def)
	}
	return grouped
}

// Lookup finds a definition by its token key.
func Lookup(key string) (Definition, bool) {
	for _, def := range catalog {
		if def.Key == key {
			return def, true
		}
	}
	return Definition{}, false
}

// Extract returns the definitions whose key occurs in text.
func Extract(text string) []Definition {
	found := []Definition{}
	if text == "" {
		return found
	}
	for _, def := range catalog {
		if strings.Contains(text, def.Key) {
			found = append(found, def)
		}
	}
	return found
}

// Contains reports whether text references any known placeholder.
func Contains(text string) bool {
	return len(Extract(text)) > 0
}

// SampleData returns preview data built from every catalog sample value.
func SampleData() Data {
	data := make(Data, len(catalog))
	for _, def := range catalog {
		data[def.Field()] = def.SampleValue
	}
	return data
}

// FieldName strips the surrounding braces from a token key.
func FieldName(key string) string {
	return strings.TrimSuffix(strings.TrimPrefix(key, "{"), "}")
}
