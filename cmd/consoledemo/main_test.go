package main

import "testing"

func TestHostBackendQueuesAndDrainsFIFO(t *testing.T) {
	b := &hostBackend{}
	if b.RxReady() {
		t.Fatal("RxReady on empty backend")
	}
	b.queue('a')
	b.queue('b')
	if !b.RxReady() {
		t.Fatal("expected RxReady after queue")
	}
	if got := b.Rx(); got != 'a' {
		t.Fatalf("Rx() = %q, want 'a'", got)
	}
	if got := b.Rx(); got != 'b' {
		t.Fatalf("Rx() = %q, want 'b'", got)
	}
	if b.RxReady() {
		t.Fatal("expected RxReady false once drained")
	}
}

func TestHostBackendTxReadyAlwaysTrue(t *testing.T) {
	b := &hostBackend{}
	if !b.TxReady() {
		t.Fatal("TxReady should always report true: there is no real wire to back up")
	}
}
