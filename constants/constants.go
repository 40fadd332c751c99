package constants

import "os"

// ticks per quarter note; every importer normalizes to this resolution
const TPQN = 96

const WholeNoteTick = TPQN * 4

const (
	DefaultOctave   = 4
	MinOctave       = 0
	MaxOctave       = 8
	DefaultVelocity = 8
	MaxVelocity     = 15
	DefaultLength   = "4"
)

// playable pitch range, o0c- to o8b+
const (
	MinNote = -1
	MaxNote = 108
)

const DefaultAddr = ":8080"

const DefaultDynamoTable = "mmlcore-scores"

// GetTickTablePath returns an override tick table file, or "" for the
// built-in table.
func GetTickTablePath() string {
	return os.Getenv("MMLCORE_TICK_TABLE")
}

func GetAddr() string {
	addr := os.Getenv("MMLCORE_ADDR")
	if addr != "" {
		return addr
	}
	return DefaultAddr
}

func GetDynamoEndpoint() string {
	return os.Getenv("MMLCORE_DYNAMO_ENDPOINT")
}

func GetDynamoTable() string {
	table := os.Getenv("MMLCORE_DYNAMO_TABLE")
	if table != "" {
		return table
	}
	return DefaultDynamoTable
}

const DefaultDynamoRegion = "us-east-1"

func GetDynamoRegion() string {
	region := os.Getenv("MMLCORE_DYNAMO_REGION")
	if region != "" {
		return region
	}
	return DefaultDynamoRegion
}
