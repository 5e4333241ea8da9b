package datastore

type DatastoreOpt func(*Datastore)

func WithMetrics(m *Metrics) DatastoreOpt {
	return func(d *Datastore) {
		d.metrics = m
	}
}
