package schema

import (
	"fmt"
	"time"
)

// BinaryScale names the power-of-1024 bracket of a BinaryNumber.
type BinaryScale string

const (
	ScaleByte BinaryScale = "Byte"
	ScaleKiB  BinaryScale = "KiB"
	ScaleMiB  BinaryScale = "MiB"
	ScaleGiB  BinaryScale = "GiB"
	ScaleTiB  BinaryScale = "TiB"
	ScalePiB  BinaryScale = "PiB"
)

var scales = []BinaryScale{ScaleByte, ScaleKiB, ScaleMiB, ScaleGiB, ScaleTiB, ScalePiB}

type BinaryNumber struct {
	Amount  float64     `json:"amount"`
	Bracket BinaryScale `json:"bracket"`
}

// BinaryNumberFromBytes picks the largest bracket that keeps Amount >= 1.
func BinaryNumberFromBytes(raw uint64) BinaryNumber {
	power := 0
	for n := raw; n >= 1024 && power < len(scales)-1; n /= 1024 {
		power++
	}
	value := float64(raw)
	for i := 0; i < power; i++ {
		value /= 1024
	}
	return BinaryNumber{Amount: value, Bracket: scales[power]}
}

func (b BinaryNumber) Bytes() uint64 {
	value := b.Amount
	for _, s := range scales {
		if s == b.Bracket {
			break
		}
		value *= 1024
	}
	return uint64(value)
}

func (b BinaryNumber) String() string {
	if b.Amount == 1 {
		return fmt.Sprintf("%.3f %s", b.Amount, b.Bracket)
	}
	return fmt.Sprintf("%.3f %ss", b.Amount, b.Bracket)
}

// Utilization is a percentage in [0,100].
type Utilization struct {
	Inner uint8 `json:"inner"`
}

func NewUtilization(v uint8) (Utilization, error) {
	if v > 100 {
		return Utilization{}, fmt.Errorf("utilization out of range: %d", v)
	}
	return Utilization{Inner: v}, nil
}

type MultiValued[T any] struct {
	Inner []T `json:"inner"`
}

type MemoryMetric struct {
	Device    string       `json:"device"`
	Total     BinaryNumber `json:"total"`
	Free      BinaryNumber `json:"free"`
	Available BinaryNumber `json:"available"`
	Buff      BinaryNumber `json:"buff"`
	Cached    BinaryNumber `json:"cached"`
}

type StorageMetric struct {
	System string       `json:"system"`
	Mount  string       `json:"mount"`
	Size   BinaryNumber `json:"size"`
	Used   BinaryNumber `json:"used"`
	// wire name keeps the daemon's spelling
	Available BinaryNumber `json:"availiable"`
	Capacity  Utilization  `json:"capacity"`
}

type CPUMetric struct {
	User    Utilization `json:"user"`
	System  Utilization `json:"system"`
	Nice    Utilization `json:"nice"`
	Idle    Utilization `json:"idle"`
	Waiting uint16      `json:"waiting"`
	Steal   uint16      `json:"steal"`
}

type ProcessCount struct {
	Count uint64 `json:"count"`
}

type NetworkSection struct {
	OK      uint64 `json:"ok"`
	Err     uint64 `json:"err"`
	Drop    uint64 `json:"drop"`
	Overrun uint64 `json:"overrun"`
}

type NetworkMetric struct {
	Name string         `json:"name"`
	MTU  string         `json:"mtu"`
	RX   NetworkSection `json:"rx"`
	TX   NetworkSection `json:"tx"`
}

// CollectedMetrics is one daemon snapshot. Sections the collector did not
// produce are nil.
type CollectedMetrics struct {
	Time      time.Time                   `json:"time"`
	Memory    *MultiValued[MemoryMetric]  `json:"memory"`
	Storage   *MultiValued[StorageMetric] `json:"storage"`
	CPU       *CPUMetric                  `json:"cpu"`
	Network   *MultiValued[NetworkMetric] `json:"network"`
	ProcCount *ProcessCount               `json:"proc_count"`
}
