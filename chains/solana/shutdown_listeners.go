package solana

// ShutdownListeners stops all active subscriptions. Streams opened afterwards are refused.
func (s *solana) ShutdownListeners() {
	s.streamsMutex.Lock()
	s.closed = true
	streams := make([]*logStream, 0, len(s.streams))
	for stream := range s.streams {
		streams = append(streams, stream)
	}
	s.streamsMutex.Unlock()

	for _, stream := range streams {
		stream.Close()
	}
}
