package publisher

import "errors"

var (
	// ErrSubscriberQueueFull is returned when a subscriber's queue is full
	// and the message was dropped.
	ErrSubscriberQueueFull = errors.New("publisher: subscriber queue full")

	// ErrSubscriberClosed is returned when sending to a closed subscription.
	ErrSubscriberClosed = errors.New("publisher: subscriber closed")

	// ErrPublisherClosed is returned by Subscribe after Close.
	ErrPublisherClosed = errors.New("publisher: closed")
)
