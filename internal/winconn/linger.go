package winconn

import "time"

// StartLinger keeps an idle connection open for the linger period and
// closes it afterwards. It does nothing unless the connection is open and
// not already lingering.
func (c *Connection) StartLinger() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.goneLocked() || c.state != StateConnected {
		c.log.Trace("start linger: not connected")
		return
	}
	if c.lingerActive {
		c.log.Trace("start linger: already lingering")
		return
	}

	c.lingerGen++
	gen := c.lingerGen
	c.lingerActive = true
	c.refs++
	c.lingerTimer = time.AfterFunc(c.linger, func() { c.lingerExpired(gen) })
	c.status = StatusLingering
	c.log.Debug("linger started", "duration", c.linger.String())
}

// CancelLinger stops a pending linger so the connection can be reused.
// It is safe to call when the timer has already fired.
func (c *Connection) CancelLinger() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.lingerActive {
		return
	}
	c.stopLingerLocked()
	c.status = StatusConnected
	c.log.Debug("linger cancelled")
}

// stopLingerLocked disarms the linger timer. When the callback is already
// running it keeps its reference and drops it itself.
func (c *Connection) stopLingerLocked() {
	if !c.lingerActive {
		return
	}
	c.lingerActive = false
	if c.lingerTimer != nil && c.lingerTimer.Stop() {
		c.refs--
	}
	c.lingerTimer = nil
}

// Lingering reports whether a linger timer is pending.
func (c *Connection) Lingering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lingerActive
}

func (c *Connection) lingerExpired(gen uint64) {
	c.mu.Lock()
	var sess Session
	if c.lingerActive && gen == c.lingerGen {
		c.lingerActive = false
		c.lingerTimer = nil
		sess = c.detachLocked()
		c.log.Debug("linger expired, closing connection")
	}
	if c.releaseLocked() {
		sess = c.destroyLocked(sess)
	}
	c.mu.Unlock()

	c.closeSession(sess)
}

// Delete tears the connection down. The owner's reference is dropped and
// the connection is destroyed once no linger callback holds one, so a
// callback already in flight performs the teardown itself. After deletion
// every call returns ErrDeleted.
func (c *Connection) Delete() {
	c.mu.Lock()
	if c.goneLocked() {
		c.mu.Unlock()
		return
	}
	c.deleteAfterLinger = true
	c.stopLingerLocked()

	var sess Session
	if c.releaseLocked() {
		sess = c.destroyLocked(nil)
	} else {
		c.log.Debug("delete deferred to linger callback")
	}
	c.mu.Unlock()

	c.closeSession(sess)
}

// releaseLocked drops one reference. It reports whether the connection
// must be destroyed now: deletion was requested and nothing else holds it.
func (c *Connection) releaseLocked() bool {
	c.refs--
	return c.refs == 0 && c.deleteAfterLinger && !c.deleted
}

// goneLocked reports whether Delete has been called, including a delete
// still waiting on the linger callback.
func (c *Connection) goneLocked() bool {
	return c.deleted || c.deleteAfterLinger
}

// destroyLocked marks the connection deleted and returns the session to
// close. pending is a session already detached by the caller.
func (c *Connection) destroyLocked(pending Session) Session {
	sess := c.detachLocked()
	if sess == nil {
		sess = pending
	}
	c.deleted = true
	c.deleteAfterLinger = false
	c.status = StatusShuttingDown
	c.password = nil
	c.log.Debug("connection deleted")
	return sess
}
