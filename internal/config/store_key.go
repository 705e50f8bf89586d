package config

import "fmt"

type StoreKeyStruct struct {
	// ExamActiveFlag is set process-wide while an attempt is IN_PROGRESS.
	// External navigation UI reads it to restrict in-app navigation; it
	// is never written by anything but the session controller.
	ExamActiveFlag string
}

func NewStoreKeyStruct() *StoreKeyStruct {
	return &StoreKeyStruct{
		ExamActiveFlag: "examActive",
	}
}

// SnapshotKey returns the store key for a test's attempt snapshot.
func (r *StoreKeyStruct) SnapshotKey(testID string) string {
	return fmt.Sprintf("testState-%s", testID)
}

var StoreKey = NewStoreKeyStruct()
