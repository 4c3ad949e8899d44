package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTask(t *testing.T) {
	valid := &Task{
		Id:         "task-1",
		DocumentId: "doc-1",
		Kind:       TaskKindProcess,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	if err := ValidateTask(valid); err != nil {
		t.Fatalf("Expected valid task, got %v", err)
	}

	if err := ValidateTask(nil); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Expected ErrInvalidTask for nil task, got %v", err)
	}

	missingDoc := *valid
	missingDoc.DocumentId = ""
	if err := ValidateTask(&missingDoc); !errors.Is(err, ErrEmptyDocumentId) {
		t.Errorf("Expected ErrEmptyDocumentId, got %v", err)
	}

	badStatus := *valid
	badStatus.Status = "sideways"
	if err := ValidateTask(&badStatus); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("Expected ErrInvalidStatus, got %v", err)
	}

	wrongTrack := *valid
	wrongTrack.Status = StatusDeleting
	if err := ValidateTask(&wrongTrack); !errors.Is(err, ErrInvalidTask) {
		t.Errorf("Expected kind/status mismatch to fail, got %v", err)
	}

	badProgress := *valid
	badProgress.Progress = 120
	if err := ValidateTask(&badProgress); !errors.Is(err, ErrInvalidProgress) {
		t.Errorf("Expected ErrInvalidProgress, got %v", err)
	}
}

func TestValidateDocument(t *testing.T) {
	valid := &Document{
		Id:         "doc-1",
		Filename:   "report.pdf",
		FileType:   FileTypePDF,
		FileSize:   1024,
		Status:     StatusQueued,
		UploadDate: time.Now().UTC(),
	}
	if err := ValidateDocument(valid); err != nil {
		t.Fatalf("Expected valid document, got %v", err)
	}

	noName := *valid
	noName.Filename = ""
	if err := ValidateDocument(&noName); !errors.Is(err, ErrEmptyFilename) {
		t.Errorf("Expected ErrEmptyFilename, got %v", err)
	}

	unknown := *valid
	unknown.FileType = FileTypeUnknown
	if err := ValidateDocument(&unknown); !errors.Is(err, ErrUnsupportedFileType) {
		t.Errorf("Expected ErrUnsupportedFileType, got %v", err)
	}
}

func TestPermanentError(t *testing.T) {
	base := errors.New("corrupt file")
	if IsPermanent(base) {
		t.Error("Plain errors must not be permanent")
	}

	wrapped := Permanent(base)
	if !IsPermanent(wrapped) {
		t.Error("Expected Permanent() result to be permanent")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent must preserve the error chain")
	}

	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}
}
