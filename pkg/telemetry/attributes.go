package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Трассировка / lane
	AttrLane         = "mesh.lane"
	AttrTraceID      = "mesh.trace_id"
	AttrParentSpanID = "mesh.parent_span_id"

	// Обнаружение сервисов (C4)
	AttrResolveTarget    = "mesh.resolve.target"
	AttrResolveInstances = "mesh.resolve.instances"
	AttrResolveSource    = "mesh.resolve.source" // registry, dns

	// Балансировка (C5)
	AttrPickLane   = "mesh.pick.lane"
	AttrPickResult = "mesh.pick.result" // exact_lane, default_lane, no_backend

	// Регистрация (C6)
	AttrRegistrarAttempts = "mesh.registrar.attempts"
)

// LaneAttributes возвращает атрибуты lane-пропагации для установки на span.
func LaneAttributes(lane, traceID, parentSpanID string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrLane, lane),
		attribute.String(AttrTraceID, traceID),
		attribute.String(AttrParentSpanID, parentSpanID),
	}
}

// ResolveAttributes возвращает атрибуты одного прохода разрешения имени.
func ResolveAttributes(target string, instances int, source string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrResolveTarget, target),
		attribute.Int(AttrResolveInstances, instances),
		attribute.String(AttrResolveSource, source),
	}
}

// PickAttributes возвращает атрибуты одного решения балансировщика о выборе.
func PickAttributes(requestedLane, result string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrPickLane, requestedLane),
		attribute.String(AttrPickResult, result),
	}
}
