// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package portainer

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Stats is a derived one-shot resource snapshot for a container.
type Stats struct {
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	MemoryUsage   uint64  `json:"memory_usage"`
	MemoryLimit   uint64  `json:"memory_limit"`
	NetworkRx     uint64  `json:"network_rx"`
	NetworkTx     uint64  `json:"network_tx"`
	BlockRead     uint64  `json:"block_read"`
	BlockWrite    uint64  `json:"block_write"`
	OnlineCPUs    int     `json:"online_cpus"`

	Timestamp time.Time `json:"timestamp"`
}

// rawStats mirrors the Docker stats wire shape, reduced to the fields
// the derivation needs.
type rawStats struct {
	Read        time.Time   `json:"read"`
	CPUStats    rawCPUStats `json:"cpu_stats"`
	PreCPUStats rawCPUStats `json:"precpu_stats"`

	MemoryStats struct {
		Usage uint64 `json:"usage"`
		Limit uint64 `json:"limit"`
	} `json:"memory_stats"`

	Networks map[string]struct {
		RxBytes uint64 `json:"rx_bytes"`
		TxBytes uint64 `json:"tx_bytes"`
	} `json:"networks"`

	BlkioStats struct {
		IOServiceBytesRecursive []struct {
			Op    string `json:"op"`
			Value uint64 `json:"value"`
		} `json:"io_service_bytes_recursive"`
	} `json:"blkio_stats"`
}

type rawCPUStats struct {
	CPUUsage struct {
		TotalUsage  uint64   `json:"total_usage"`
		PercpuUsage []uint64 `json:"percpu_usage"`
	} `json:"cpu_usage"`
	SystemCPUUsage uint64 `json:"system_cpu_usage"`
	OnlineCPUs     int    `json:"online_cpus"`
}

// ContainerStats fetches one non-streaming stats sample and derives
// percentages from the sample's current and previous counters.
func (c *Client) ContainerStats(ctx context.Context, containerID string) (*Stats, error) {
	if containerID == "" {
		return nil, fmt.Errorf("portainer: container ID is required")
	}

	query := url.Values{"stream": {"false"}}
	path := c.dockerPath("/containers/" + url.PathEscape(containerID) + "/stats")

	var raw rawStats
	if err := c.request(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}

	stats := computeStats(&raw)
	if stats.Timestamp.IsZero() {
		stats.Timestamp = c.clock.Now().UTC()
	}
	return stats, nil
}

// computeStats derives percentages and aggregates from one raw
// sample. Zero or backwards counter deltas yield 0 percent rather
// than negative or infinite values: the first sample after a
// container restart legitimately has no usable previous counters.
func computeStats(raw *rawStats) *Stats {
	stats := &Stats{
		MemoryUsage: raw.MemoryStats.Usage,
		MemoryLimit: raw.MemoryStats.Limit,
	}
	if !raw.Read.IsZero() {
		stats.Timestamp = raw.Read.UTC()
	}

	onlineCPUs := raw.CPUStats.OnlineCPUs
	if onlineCPUs == 0 {
		onlineCPUs = len(raw.CPUStats.CPUUsage.PercpuUsage)
	}
	if onlineCPUs == 0 {
		onlineCPUs = 1
	}
	stats.OnlineCPUs = onlineCPUs

	if raw.CPUStats.CPUUsage.TotalUsage >= raw.PreCPUStats.CPUUsage.TotalUsage &&
		raw.CPUStats.SystemCPUUsage > raw.PreCPUStats.SystemCPUUsage {
		cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage - raw.PreCPUStats.CPUUsage.TotalUsage)
		systemDelta := float64(raw.CPUStats.SystemCPUUsage - raw.PreCPUStats.SystemCPUUsage)
		stats.CPUPercent = cpuDelta / systemDelta * float64(onlineCPUs) * 100
	}

	if raw.MemoryStats.Limit > 0 {
		stats.MemoryPercent = float64(raw.MemoryStats.Usage) / float64(raw.MemoryStats.Limit) * 100
	}

	for _, network := range raw.Networks {
		stats.NetworkRx += network.RxBytes
		stats.NetworkTx += network.TxBytes
	}

	for _, entry := range raw.BlkioStats.IOServiceBytesRecursive {
		switch entry.Op {
		case "Read", "read":
			stats.BlockRead += entry.Value
		case "Write", "write":
			stats.BlockWrite += entry.Value
		}
	}

	return stats
}
