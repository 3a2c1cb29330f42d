// Package entity describes destinations: exchanges, queues bound to them, and the declarative
// entries queues can be built from.
//
// Descriptors are plain values. They hold no channel, every broker operation takes the
// kombu.Channel to run on, which keeps a descriptor valid across channel revivals.
package entity
