package config

import (
	"reflect"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "valid",
			cfg: Config{
				Self: 1, Neighbors: []uint16{2, 3},
				RootHelloInterval: time.Second, ReelectionInterval: 3 * time.Second,
				MixingFactor: 1,
			},
			wantErr: false,
		},
		{
			name:    "zero mixing factor",
			cfg:     Config{Self: 1, RootHelloInterval: time.Second, ReelectionInterval: 3 * time.Second, MixingFactor: 0},
			wantErr: true,
		},
		{
			name:    "reelection not strictly greater",
			cfg:     Config{Self: 1, RootHelloInterval: time.Second, ReelectionInterval: time.Second, MixingFactor: 1},
			wantErr: true,
		},
		{
			name:    "self-neighbor",
			cfg:     Config{Self: 1, Neighbors: []uint16{1}, RootHelloInterval: time.Second, ReelectionInterval: 2 * time.Second, MixingFactor: 1},
			wantErr: true,
		},
		{
			name:    "duplicate neighbor",
			cfg:     Config{Self: 1, Neighbors: []uint16{2, 2}, RootHelloInterval: time.Second, ReelectionInterval: 2 * time.Second, MixingFactor: 1},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestUserPort(t *testing.T) {
	c := Config{Self: 1, Neighbors: []uint16{2, 3, 4}}
	if got := c.UserPort(); got != 3 {
		t.Errorf("UserPort() = %d, want 3", got)
	}
}

func TestTopology_Configs(t *testing.T) {
	top := Topology{
		RootHelloIntervalMs:  500,
		ReelectionIntervalMs: 1500,
		MixingFactor:         3,
		RandomRouting:        true,
		Seed:                 []uint64{7, 9},
		Nodes: []NodeSpec{
			{Address: 1, Neighbors: []uint16{2}},
			{Address: 2, Neighbors: []uint16{1}},
		},
	}

	got := top.Configs()
	want := []Config{
		{Self: 1, Neighbors: []uint16{2}, RootHelloInterval: 500 * time.Millisecond, ReelectionInterval: 1500 * time.Millisecond, MixingFactor: 3, RandomRouting: true, Seed: [2]uint64{7, 9}},
		{Self: 2, Neighbors: []uint16{1}, RootHelloInterval: 500 * time.Millisecond, ReelectionInterval: 1500 * time.Millisecond, MixingFactor: 3, RandomRouting: true, Seed: [2]uint64{7, 9}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Configs() = %+v, want %+v", got, want)
	}
}

func TestTopology_Configs_defaultsMixingFactorToOne(t *testing.T) {
	top := Topology{Nodes: []NodeSpec{{Address: 1}}}
	got := top.Configs()
	if got[0].MixingFactor != 1 {
		t.Errorf("MixingFactor = %d, want 1 default", got[0].MixingFactor)
	}
}
