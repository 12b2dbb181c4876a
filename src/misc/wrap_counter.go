package misc

// WrapCounter counts from 0 up to a bound and wraps. A bound of 0 behaves
// like 1.
type WrapCounter struct {
	value int
	bound int
}

func (this *WrapCounter) Init(bound int) {
	if bound <= 0 {
		bound = 1
	}
	this.value = 0
	this.bound = bound
}

func (this *WrapCounter) Value() int {
	return this.value
}

func (this *WrapCounter) Bound() int {
	return this.bound
}

// IsLast reports whether the next Increment wraps.
func (this *WrapCounter) IsLast() bool {
	return this.value+1 >= this.bound
}

// Increment advances the counter and reports whether it wrapped to 0.
func (this *WrapCounter) Increment() bool {
	this.value++
	if this.value >= this.bound {
		this.value = 0
		return true
	}
	return false
}
