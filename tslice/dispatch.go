package tslice

// Link resolves every Linkable field across all of the object's slices.
// Variants that hold no links simply don't implement Linkable, making
// this a no-op for them.
func (o *Object) Link(store Loader) error {
	for i := range o.Slices {
		if lk, ok := o.Slices[i].Body.(Linkable); ok {
			if err := lk.Link(store); err != nil {
				return err
			}
		}
	}
	return nil
}

// Recompute derives bounding boxes, composed altitude ranges, and other
// state for every slice that supports it.
func (o *Object) Recompute(ctx TopoContext) error {
	for i := range o.Slices {
		if rc, ok := o.Slices[i].Body.(Recomputable); ok {
			if err := rc.Recompute(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}
