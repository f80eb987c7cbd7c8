// Package repository provides database abstraction for run persistence.
package repository

import (
	"time"
)

// RunRecord represents the run table: one row per completed join.
type RunRecord struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UUID         string    `gorm:"column:uuid;type:varchar(64);uniqueIndex"`
	N            int       `gorm:"column:n"`
	P            int       `gorm:"column:p"`
	TreeScore    float64   `gorm:"column:tree_score"`
	TotalSeconds float64   `gorm:"column:total_seconds"`
	MPISeconds   float64   `gorm:"column:mpi_seconds"`
	Newick       string    `gorm:"column:newick;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for RunRecord.
func (RunRecord) TableName() string {
	return "run"
}
