package realtime

// Stats is a point-in-time summary of the registry
type Stats struct {
	TotalConnections      int            `json:"totalConnections"`
	ActiveConnections     int            `json:"activeConnections"`
	StoreConnections      map[string]int `json:"storeConnections"`
	AverageConnectionTime float64        `json:"averageConnectionTime"`
}

// Health is the payload of the health endpoint
type Health struct {
	ServerOnline      bool   `json:"serverOnline"`
	ActiveConnections int    `json:"activeConnections"`
	Timestamp         string `json:"timestamp"`
}

// GetStats computes statistics over one registry snapshot. It has no side
// effects. AverageConnectionTime is in milliseconds.
func (h *Hub) GetStats() Stats {
	connections := h.registry.GetAll()
	now := h.clock.Now()

	stats := Stats{
		TotalConnections: len(connections),
		StoreConnections: make(map[string]int),
	}
	if len(connections) == 0 {
		return stats
	}

	var totalAgeMs int64
	for _, conn := range connections {
		if conn.Ready() {
			stats.ActiveConnections++
		}
		if storeID := conn.StoreID(); storeID != "" {
			stats.StoreConnections[storeID]++
		}
		totalAgeMs += now.Sub(conn.ConnectedAt()).Milliseconds()
	}
	stats.AverageConnectionTime = float64(totalAgeMs) / float64(len(connections))
	return stats
}

// ActiveConnections returns the number of registered connections with an
// open transport
func (h *Hub) ActiveConnections() int {
	active := 0
	h.registry.ForEach(func(conn *Connection) {
		if conn.Ready() {
			active++
		}
	})
	return active
}

// GetHealth reports whether the hub is serving and how many peers it has
func (h *Hub) GetHealth() Health {
	return Health{
		ServerOnline:      h.Running(),
		ActiveConnections: h.ActiveConnections(),
		Timestamp:         FormatTimestamp(h.clock.Now()),
	}
}
