package deviceagent

// chargingConfig describes how to toggle the charger on one device model,
// keyed by the presence of a witness file in sysfs/debugfs.
type chargingConfig struct {
	witnessFile    string
	enableCommand  string
	disableCommand string
}

// factCache memoizes expensive-to-query device facts for one session. It is
// a closed set of slots rather than a generic string map so that every
// state-changing operation has an explicit invalidation target. It is not
// safe for concurrent use; a session is driven by one logical caller.
type factCache struct {
	props           map[string]string
	needsSU         *bool
	externalStorage string
	charging        *chargingConfig
	unzipReady      *bool
}

func newFactCache() *factCache {
	return &factCache{props: make(map[string]string)}
}

func (c *factCache) prop(name string) (string, bool) {
	value, ok := c.props[name]
	return value, ok
}

func (c *factCache) setProp(name, value string) {
	c.props[name] = value
}

// invalidateProp drops one cached property. Called by SetProp.
func (c *factCache) invalidateProp(name string) {
	delete(c.props, name)
}

// invalidateRoot drops the needs-su fact. Called when EnableRoot succeeds.
func (c *factCache) invalidateRoot() {
	c.needsSU = nil
}

// reset drops every fact. Called on Reboot.
func (c *factCache) reset() {
	c.props = make(map[string]string)
	c.needsSU = nil
	c.externalStorage = ""
	c.charging = nil
	c.unzipReady = nil
}
