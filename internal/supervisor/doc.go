// Waypoint - OwnTracks Location Recorder
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/waypoint

/*
Package supervisor runs Waypoint's long-running services under suture v4.

The tree has three layers so failures stay local:

	RootSupervisor ("waypoint")
	├── StorageSupervisor ("storage-layer")
	│   └── IndexGCService (badger index only)
	├── IngestSupervisor ("ingest-layer")
	│   ├── EmbeddedNATSService (NATS_EMBEDDED)
	│   └── mqtt.Subscriber (MQTT_ENABLED)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Crashed services restart with suture's backoff. Canceling the context
passed to Serve stops every service; UnstoppedServiceReport lists the ones
that missed the shutdown timeout.

Supervisor events are logged through sutureslog into the zerolog-backed
slog handler from the logging package:

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
	    return err
	}
	tree.AddAPIService(services.NewHTTPServerService(srv, 10*time.Second))
	return tree.Serve(ctx)
*/
package supervisor
