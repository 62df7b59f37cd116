package integration

import (
	"fmt"
	"sync/atomic"
	"time"
)

var matricSeq atomic.Int64

// uniqueMatric generates a unique matric number so tests never collide on
// the students unique constraint
func uniqueMatric(dept string) string {
	return fmt.Sprintf("%s/%d/%03d", dept, time.Now().Year(), matricSeq.Add(1))
}

// TestStudent generates unique test credentials
func TestStudent() (matricNumber, password string) {
	return uniqueMatric("CSC"), "TestPassword123!"
}
