package model

import "time"

// DocumentType identifies the kind of scanned legal document.
type DocumentType string

const (
	DocumentTypeEscritura       DocumentType = "escritura"
	DocumentTypePatenteComercio DocumentType = "patente_comercio"
	DocumentTypePatenteSociedad DocumentType = "patente_sociedad"
	DocumentTypeDPI             DocumentType = "dpi"
	DocumentTypeUnknown         DocumentType = "unknown"
)

// Document is an uploaded scan awaiting or having completed extraction.
type Document struct {
	ID           string       `json:"id"`
	Type         DocumentType `json:"document_type"`
	FileKey      string       `json:"file_key"`
	OriginalName string       `json:"original_name,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
