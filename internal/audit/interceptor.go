package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"go.uber.org/zap"

	"agritrace.io/agritrace/internal/domain"
	"agritrace.io/agritrace/internal/pkg/logger"
)

// Dispatcher hands a change to the recorder without blocking the caller on
// the append.
type Dispatcher interface {
	Dispatch(ctx context.Context, c Change) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, c Change) error

// Dispatch implements Dispatcher.
func (f DispatcherFunc) Dispatch(ctx context.Context, c Change) error { return f(ctx, c) }

// Interceptor turns entity lifecycle notifications into audit changes.
// Nothing it does can fail the write that triggered it: every error and
// panic is logged and swallowed.
type Interceptor struct {
	dispatcher Dispatcher
	actors     ActorResolver
	log        *zap.Logger
}

var _ domain.LifecycleListener = (*Interceptor)(nil)

// NewInterceptor creates an Interceptor.
func NewInterceptor(d Dispatcher, actors ActorResolver) *Interceptor {
	if actors == nil {
		actors = ContextActors
	}
	return &Interceptor{
		dispatcher: d,
		actors:     actors,
		log:        logger.Named("audit.interceptor"),
	}
}

// OnAfterCreate implements domain.LifecycleListener.
func (i *Interceptor) OnAfterCreate(ctx context.Context, entity domain.Entity) {
	i.intercept(ctx, OpCreate, nil, entity)
}

// OnAfterUpdate implements domain.LifecycleListener. When before is supplied
// the change also carries the pre-image and the changed top-level fields.
func (i *Interceptor) OnAfterUpdate(ctx context.Context, before, after domain.Entity) {
	i.intercept(ctx, OpUpdate, before, after)
}

// OnBeforeDelete implements domain.LifecycleListener.
func (i *Interceptor) OnBeforeDelete(ctx context.Context, entity domain.Entity) {
	i.intercept(ctx, OpDelete, nil, entity)
}

func (i *Interceptor) intercept(ctx context.Context, op OperationType, before, entity domain.Entity) {
	defer func() {
		if r := recover(); r != nil {
			ChangesDropped.WithLabelValues(DropInterceptPanic).Inc()
			i.log.Error("Audit interception panicked",
				zap.String("operation", string(op)),
				zap.Any("panic", r),
			)
		}
	}()

	if isNil(entity) {
		return
	}
	kind := i.kindOf(entity)
	if Excluded(kind) {
		ChangesDropped.WithLabelValues(DropExcluded).Inc()
		return
	}

	actor, ok := i.actors.ResolveActor(ctx)
	if !ok || actor.Anonymous() {
		ChangesDropped.WithLabelValues(DropNoActor).Inc()
		i.log.Warn("No authenticated actor, change not audited",
			zap.String("operation", string(op)),
			zap.String("entity_kind", kind),
		)
		return
	}

	id := i.idOf(entity)
	code := EntityCode(i.naturalKeyOf(kind, entity), id)
	rec := Record{
		TenantID:    i.tenantOf(entity, actor),
		EntityType:  Category(kind),
		EntityID:    id,
		EntityCode:  code,
		Description: Describe(op, kind, code),
		ActorID:     actor.ID,
	}

	switch op {
	case OpCreate:
		rec.AfterState = i.snapshot(entity)
	case OpUpdate:
		rec.AfterState = i.snapshot(entity)
		if !isNil(before) {
			rec.BeforeState = i.snapshot(before)
			rec.ChangedFields = ChangedFields(rec.BeforeState, rec.AfterState)
		}
	case OpDelete:
		rec.BeforeState = i.snapshot(entity)
	}

	// The change outlives the request; keep its values, drop its deadline.
	if err := i.dispatcher.Dispatch(context.WithoutCancel(ctx), Change{Operation: op, Record: rec}); err != nil {
		ChangesDropped.WithLabelValues(DropDispatchFailed).Inc()
		i.log.Error("Failed to dispatch audit change",
			zap.String("operation", string(op)),
			zap.String("entity_type", rec.EntityType),
			zap.String("entity_code", rec.EntityCode),
			zap.Error(err),
		)
	}
}

// recovered runs fn and reports a panic as an error.
func recovered(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}

func (i *Interceptor) kindOf(entity domain.Entity) string {
	var kind string
	if err := recovered(func() { kind = entity.EntityKind() }); err != nil {
		i.log.Debug("Entity kind accessor failed", zap.Error(err))
	}
	if kind == "" {
		kind = typeName(entity)
	}
	return kind
}

func (i *Interceptor) idOf(entity domain.Entity) *int64 {
	var (
		id int64
		ok bool
	)
	if err := recovered(func() { id, ok = entity.AuditID() }); err != nil {
		i.log.Debug("Entity id accessor failed", zap.String("entity", typeName(entity)), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return &id
}

func (i *Interceptor) naturalKeyOf(kind string, entity domain.Entity) string {
	d, ok := descriptors[kind]
	if !ok {
		return ""
	}
	var key string
	if err := recovered(func() { key = d.naturalKey(entity) }); err != nil {
		i.log.Debug("Natural key accessor failed", zap.String("entity_kind", kind), zap.Error(err))
		return ""
	}
	return key
}

func (i *Interceptor) tenantOf(entity domain.Entity, actor Actor) *int64 {
	owned, ok := entity.(domain.TenantOwned)
	if !ok {
		return actor.TenantID
	}
	var tenant *int64
	if err := recovered(func() { tenant = owned.OwnerTenant() }); err != nil {
		i.log.Debug("Entity tenant accessor failed", zap.String("entity", typeName(entity)), zap.Error(err))
	}
	if tenant == nil {
		return actor.TenantID
	}
	return tenant
}

func (i *Interceptor) snapshot(entity domain.Entity) *string {
	var (
		raw []byte
		err error
	)
	if perr := recovered(func() { raw, err = json.Marshal(entity) }); perr != nil {
		err = perr
	}
	if err != nil {
		i.log.Debug("Entity snapshot failed", zap.String("entity", typeName(entity)), zap.Error(err))
		return nil
	}
	s := string(raw)
	return &s
}

// ChangedFields returns the sorted top-level keys whose values differ between
// two JSON object snapshots. It returns nil when either side is missing or
// not an object.
func ChangedFields(before, after *string) []string {
	if before == nil || after == nil {
		return nil
	}
	var b, a map[string]json.RawMessage
	if json.Unmarshal([]byte(*before), &b) != nil || json.Unmarshal([]byte(*after), &a) != nil {
		return nil
	}

	var changed []string
	for k, av := range a {
		if bv, ok := b[k]; !ok || string(bv) != string(av) {
			changed = append(changed, k)
		}
	}
	for k := range b {
		if _, ok := a[k]; !ok {
			changed = append(changed, k)
		}
	}
	sort.Strings(changed)
	return changed
}

func isNil(entity domain.Entity) bool {
	if entity == nil {
		return true
	}
	v := reflect.ValueOf(entity)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func typeName(v any) string {
	name := fmt.Sprintf("%T", v)
	if idx := strings.LastIndexByte(name, '.'); idx >= 0 {
		name = name[idx+1:]
	}
	return strings.TrimLeft(name, "*")
}
