package dbo

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// GetInstance creates an unhydrated instance of the template's instance type
// and registers it with the template. The instance stays registered until it
// is released.
func (o *Object) GetInstance(owner *Object) (*Object, error) {
	it, ok := o.typ.reg.InstanceType(o.typ.id)
	if !ok {
		return nil, fmt.Errorf("%w: no instance type for template %s", ErrUnknownType, o.typ.id)
	}

	inst := it.New()
	inst.template = o
	inst.templateKey = o.Key()
	inst.owner = owner
	inst.token = uuid.NewString()

	if o.instances == nil {
		o.instances = map[string]*Object{}
	}
	o.instances[inst.token] = inst

	return inst, nil
}

// CreateInstance returns a new live instance configured by the template.
func (o *Object) CreateInstance(ctx context.Context, owner *Object) (*Object, error) {
	inst, err := o.GetInstance(owner)
	if err != nil {
		return nil, err
	}
	inst.state = StateHydrated
	inst.typ.onLoaded(ctx, inst)
	o.configInstance(ctx, inst)
	return inst, nil
}

// Instances returns the live instances registered with the template.
func (o *Object) Instances() []*Object {
	out := make([]*Object, 0, len(o.instances))
	for _, inst := range o.instances {
		out = append(out, inst)
	}
	slices.SortFunc(out, func(a, b *Object) int { return strings.Compare(a.token, b.token) })
	return out
}

// Release unregisters an instance from its template. Released instances no
// longer follow template reloads.
func (o *Object) Release() {
	if o.template == nil || o.token == "" {
		return
	}
	delete(o.template.instances, o.token)
	o.token = ""
}

func (o *Object) configInstance(ctx context.Context, inst *Object) {
	if o.typ.configInstance != nil {
		o.typ.configInstance(ctx, o, inst)
	}
}
