package metrics

import (
	"fmt"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
)

var (
	SamplesIngested  atomic.Int64
	IngestFailures   atomic.Int64
	BrokerPublishErr atomic.Int64
	StreamClients    atomic.Int64
	StreamFrames     atomic.Int64
	StreamDrops      atomic.Int64
	StoreErrors      atomic.Int64
)

func HandleMetrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(fmt.Sprintf(
		"fleet_samples_ingested_total %d\n"+
			"fleet_ingest_failures_total %d\n"+
			"fleet_broker_publish_errors_total %d\n"+
			"fleet_stream_clients %d\n"+
			"fleet_stream_frames_total %d\n"+
			"fleet_stream_drops_total %d\n"+
			"fleet_store_errors_total %d\n",
		SamplesIngested.Load(),
		IngestFailures.Load(),
		BrokerPublishErr.Load(),
		StreamClients.Load(),
		StreamFrames.Load(),
		StreamDrops.Load(),
		StoreErrors.Load(),
	))
}
