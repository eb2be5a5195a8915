package server

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSharedPolicyWaitsForWorkers(t *testing.T) {
	release := make(chan struct{})
	var served atomic.Int32

	p := NewSharedPolicy(func(c net.Conn) {
		<-release
		served.Add(1)
		c.Close()
	})

	for i := 0; i < 10; i++ {
		require.NoError(t, p.Dispatch(newScriptedConn("")))
	}

	waited := make(chan struct{})
	go func() {
		p.Wait()
		close(waited)
	}()

	select {
	case <-waited:
		t.Fatal("Wait returned while workers were blocked")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-waited
	assert.Equal(t, int32(10), served.Load())
}

func TestBoundedPolicyLimitsConcurrency(t *testing.T) {
	const limit = 3

	var (
		mu      sync.Mutex
		running int
		peak    int
	)
	p := NewBoundedPolicy(limit, func(c net.Conn) {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(5 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		c.Close()
	})

	conns := make([]*scriptedConn, 20)
	for i := range conns {
		conns[i] = newScriptedConn("")
		require.NoError(t, p.Dispatch(conns[i]))
	}
	p.Wait()

	assert.LessOrEqual(t, peak, limit)
	assert.Positive(t, peak)
	for _, c := range conns {
		assert.True(t, c.closed)
	}
}

func TestBoundedPolicyBlocksWhenFull(t *testing.T) {
	release := make(chan struct{})
	p := NewBoundedPolicy(1, func(c net.Conn) {
		<-release
		c.Close()
	})

	require.NoError(t, p.Dispatch(newScriptedConn("")))

	dispatched := make(chan struct{})
	go func() {
		p.Dispatch(newScriptedConn(""))
		close(dispatched)
	}()

	select {
	case <-dispatched:
		t.Fatal("Dispatch did not wait for a free slot")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-dispatched
	p.Wait()
}

func TestIsolatedPolicyRejectsNonSocketConn(t *testing.T) {
	p := NewIsolatedPolicy("/bin/true", nil, NewNullLogger())

	conn := newScriptedConn("")
	err := p.Dispatch(conn)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "socket-backed connection")
	assert.True(t, conn.closed)
	p.Wait()
}

func TestIsolatedPolicyStartFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()

	client, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	p := NewIsolatedPolicy("/definitely/not/a/binary", nil, NewNullLogger())
	err = p.Dispatch(<-accepted)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "start worker process")
	p.Wait()
}
