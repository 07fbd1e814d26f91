package inmemdb

import (
	"sync"

	"github.com/trezcool/sundayschool/core/attendance"
	"github.com/trezcool/sundayschool/core/student"
)

type (
	// DB is a process-local store used by tests and the "memory" database engine.
	DB struct {
		attendance *attendanceTable
		student    *studentTable
	}

	recordKey struct {
		studentRef string
		day        attendance.Day
	}

	attendanceTable struct {
		table map[recordKey]*attendance.Record
		mutex sync.RWMutex
	}

	studentTable struct {
		table map[string]*student.Student
		mutex sync.RWMutex
	}
)

func Open() *DB {
	return &DB{
		attendance: &attendanceTable{table: make(map[recordKey]*attendance.Record)},
		student:    &studentTable{table: make(map[string]*student.Student)},
	}
}
