package client

import "context"

// Hooks defines lifecycle callbacks invoked around record mutations.
type Hooks interface {
	BeforeCreate(ctx context.Context, model string, input Mutation) error
	AfterCreate(ctx context.Context, model string, record Record) error
	BeforeUpdate(ctx context.Context, model string, data Mutation) error
	AfterUpdate(ctx context.Context, model string, record Record) error
	BeforeDelete(ctx context.Context, model string, where UniqueWhere) error
	AfterDelete(ctx context.Context, model string, record Record) error
}

// NopHooks implements Hooks with no-ops; embed it to override a subset.
type NopHooks struct{}

func (NopHooks) BeforeCreate(context.Context, string, Mutation) error    { return nil }
func (NopHooks) AfterCreate(context.Context, string, Record) error       { return nil }
func (NopHooks) BeforeUpdate(context.Context, string, Mutation) error    { return nil }
func (NopHooks) AfterUpdate(context.Context, string, Record) error       { return nil }
func (NopHooks) BeforeDelete(context.Context, string, UniqueWhere) error { return nil }
func (NopHooks) AfterDelete(context.Context, string, Record) error       { return nil }
