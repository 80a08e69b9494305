package replica

import (
	"context"
	"time"

	"github.com/zoobzio/capitan"
)

// Signals for replica events.
var (
	SignalEngineCreated = capitan.NewSignal("replica.engine.created", "Engine instantiated")
	SignalCopyStart     = capitan.NewSignal("replica.copy.start", "Copy operation beginning")
	SignalCopyComplete  = capitan.NewSignal("replica.copy.complete", "Copy operation finished")
	SignalPlanBuilt     = capitan.NewSignal("replica.plan.built", "Type classified and cached")
)

// Keys for typed event data.
var (
	KeyTypeName = capitan.NewStringKey("type_name")
	KeyStrategy = capitan.NewStringKey("strategy")
	KeyShape    = capitan.NewStringKey("shape")
	KeyMembers  = capitan.NewIntKey("members")
	KeyVisited  = capitan.NewIntKey("visited")
	KeyDuration = capitan.NewDurationKey("duration")
	KeyError    = capitan.NewErrorKey("error")
)

// emitEngineCreated emits an event when an engine is created.
func emitEngineCreated(ctx context.Context, strategy Strategy) {
	capitan.Emit(ctx, SignalEngineCreated,
		KeyStrategy.Field(strategy.String()),
	)
}

// emitCopyStart emits an event when a copy begins.
func emitCopyStart(ctx context.Context, typeName string, strategy Strategy) {
	capitan.Emit(ctx, SignalCopyStart,
		KeyTypeName.Field(typeName),
		KeyStrategy.Field(strategy.String()),
	)
}

// emitCopyComplete emits an event when a copy finishes.
func emitCopyComplete(ctx context.Context, typeName string, strategy Strategy, visited int, duration time.Duration, err error) {
	fields := []capitan.Field{
		KeyTypeName.Field(typeName),
		KeyStrategy.Field(strategy.String()),
		KeyVisited.Field(visited),
		KeyDuration.Field(duration),
	}
	if err != nil {
		fields = append(fields, KeyError.Field(err))
		capitan.Error(ctx, SignalCopyComplete, fields...)
	} else {
		capitan.Emit(ctx, SignalCopyComplete, fields...)
	}
}

// emitPlanBuilt emits an event when a type is classified for the first time.
func emitPlanBuilt(ctx context.Context, typeName string, shape Shape, members int) {
	capitan.Emit(ctx, SignalPlanBuilt,
		KeyTypeName.Field(typeName),
		KeyShape.Field(shape.String()),
		KeyMembers.Field(members),
	)
}
