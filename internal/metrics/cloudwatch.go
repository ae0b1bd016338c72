package metrics

import (
	"context"
	"sync"
	"time"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"

	"github.com/hasib2k/online-store/internal/aws"
)

const (
	putTimeout    = 2 * time.Second
	flushInterval = 5 * time.Second
	queueSize     = 256
	// PutMetricData accepts at most this many datums per call
	maxBatch = 1000
)

// CloudWatch queues observations and sends them from a background goroutine,
// batched into PutMetricData calls every flushInterval and on Close.
// Observing never blocks: when the queue is full the observation is dropped.
// Send failures are logged and dropped; metrics never fail a request.
type CloudWatch struct {
	client    aws.CloudWatchAPI
	namespace string
	logger    *zap.Logger
	nowFunc   func() time.Time

	queue     chan []cwtypes.MetricDatum
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewCloudWatch returns a recorder publishing under namespace and starts its
// sender. Call Close to flush what is queued.
func NewCloudWatch(client aws.CloudWatchAPI, namespace string, logger *zap.Logger) *CloudWatch {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &CloudWatch{
		client:    client,
		namespace: namespace,
		logger:    logger.Named("metrics"),
		nowFunc:   time.Now,
		queue:     make(chan []cwtypes.MetricDatum, queueSize),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.run(flushInterval)
	return c
}

func (c *CloudWatch) ObserveReconcile(s ReconcileSample) {
	c.enqueue(
		c.datum("ReconcileDuration", s.Duration.Seconds()*1000, cwtypes.StandardUnitMilliseconds),
		c.datum("ReconcileStructuredRows", float64(s.Structured), cwtypes.StandardUnitCount),
		c.datum("ReconcileFileRows", float64(s.File), cwtypes.StandardUnitCount),
		c.datum("ReconcileDuplicates", float64(s.Duplicates), cwtypes.StandardUnitCount),
		c.datum("ReconcileResultSize", float64(s.Result), cwtypes.StandardUnitCount),
		c.datum("ReconcileSourceErrors", float64(s.SourceErrors), cwtypes.StandardUnitCount),
	)
}

func (c *CloudWatch) ObserveMutation(action, store, outcome string) {
	d := c.datum("AdminMutations", 1, cwtypes.StandardUnitCount)
	d.Dimensions = []cwtypes.Dimension{
		{Name: sdkaws.String("Action"), Value: sdkaws.String(action)},
		{Name: sdkaws.String("Store"), Value: sdkaws.String(store)},
		{Name: sdkaws.String("Outcome"), Value: sdkaws.String(outcome)},
	}
	c.enqueue(d)
}

func (c *CloudWatch) ObserveAuthFailure() {
	c.enqueue(c.datum("AdminAuthFailures", 1, cwtypes.StandardUnitCount))
}

// Close sends everything queued so far and stops the sender.
func (c *CloudWatch) Close() error {
	c.closeOnce.Do(func() { close(c.stop) })
	<-c.done
	return nil
}

func (c *CloudWatch) datum(name string, value float64, unit cwtypes.StandardUnit) cwtypes.MetricDatum {
	return cwtypes.MetricDatum{
		MetricName: sdkaws.String(name),
		Value:      sdkaws.Float64(value),
		Unit:       unit,
		Timestamp:  sdkaws.Time(c.nowFunc()),
	}
}

func (c *CloudWatch) enqueue(data ...cwtypes.MetricDatum) {
	select {
	case c.queue <- data:
	default:
		c.logger.Warn("metrics queue full, dropping", zap.String("metric", sdkaws.ToString(data[0].MetricName)))
	}
}

func (c *CloudWatch) run(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var batch []cwtypes.MetricDatum
	for {
		select {
		case data := <-c.queue:
			batch = append(batch, data...)
			if len(batch) >= maxBatch {
				c.flush(batch)
				batch = nil
			}
		case <-ticker.C:
			c.flush(batch)
			batch = nil
		case <-c.stop:
			for {
				select {
				case data := <-c.queue:
					batch = append(batch, data...)
				default:
					c.flush(batch)
					return
				}
			}
		}
	}
}

func (c *CloudWatch) flush(batch []cwtypes.MetricDatum) {
	for len(batch) > 0 {
		n := min(len(batch), maxBatch)
		c.put(batch[:n])
		batch = batch[n:]
	}
}

func (c *CloudWatch) put(data []cwtypes.MetricDatum) {
	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()
	_, err := c.client.PutMetricData(ctx, &cloudwatch.PutMetricDataInput{
		Namespace:  sdkaws.String(c.namespace),
		MetricData: data,
	})
	if err != nil {
		c.logger.Warn("put metric data failed", zap.Error(err), zap.Int("datums", len(data)))
	}
}
