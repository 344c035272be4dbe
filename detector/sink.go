package detector

// Sink receives detected calls. Enter is called once before the first call
// of a pass and Exit once after the last, with the error that ended the pass
// (nil on success). Calls arrive sequentially from a single goroutine.
type Sink interface {
	Enter() error
	HandleCall(call DetectedCall) error
	Exit(err error) error
}

// Collector is a Sink that keeps every call in memory
type Collector struct {
	Calls   []DetectedCall
	entered int
	exited  int
	lastErr error
}

func (c *Collector) Enter() error {
	c.entered++
	return nil
}

func (c *Collector) HandleCall(call DetectedCall) error {
	c.Calls = append(c.Calls, call)
	return nil
}

func (c *Collector) Exit(err error) error {
	c.exited++
	c.lastErr = err
	return nil
}

// Count returns the number of calls collected
func (c *Collector) Count() int {
	return len(c.Calls)
}
