package dto

import (
	"time"

	"github.com/samuelysliu/pdf-editor/internal/model"
)

type PDFResponseDTO struct {
	PDFID     int64     `json:"pdf_id"`
	Filename  string    `json:"filename"`
	FileSize  int64     `json:"file_size"`
	PageCount int       `json:"page_count"`
	QuotaUsed int       `json:"quota_used"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadResponseDTO struct {
	PDFResponseDTO
	QuotaRemaining int `json:"quota_remaining"`
}

// QuotaDeclinedDTO is sent with 402 when the balance does not cover an upload.
type QuotaDeclinedDTO struct {
	Needed    int `json:"needed"`
	Available int `json:"available"`
}

func NewPDFResponse(f *model.PDFFile) PDFResponseDTO {
	return PDFResponseDTO{
		PDFID:     f.ID,
		Filename:  f.Filename,
		FileSize:  f.FileSize,
		PageCount: f.PageCount,
		QuotaUsed: f.QuotaUsed,
		CreatedAt: f.CreatedAt,
	}
}

type PDFListResponseDTO struct {
	Files []PDFResponseDTO `json:"files"`
	Total int              `json:"total"`
}

type QuotaResponseDTO struct {
	UserID int64 `json:"user_id"`
	Quota  int   `json:"quota"`
}

// MergeRequestDTO is the body of POST /pdf/merge
type MergeRequestDTO struct {
	PDFIDs     []int64 `json:"pdf_ids" validate:"required,min=2,dive,gt=0"`
	OutputName string  `json:"output_filename" validate:"omitempty,max=255"`
}

type MissingFilesDTO struct {
	MissingIDs []int64 `json:"missing_ids"`
}
