package services

import (
	"context"
	"log"
	"time"

	"inventaris/server/internal/metrics"
	"inventaris/server/internal/utils"

	"github.com/shopspring/decimal"
)

// ReportCache хранит готовые отчеты об ответственности.
// Ошибки кэша не должны ломать отчет, поэтому методы их не возвращают.
// Invalidate поднимает версию сырья; Get отдает только отчет текущей версии,
// так что отчет, собранный до Invalidate, после него не отдается
type ReportCache interface {
	Get(ctx context.Context, rawMaterialID string) (*AccountabilityReport, bool)
	// Version - текущая версия; ok=false, если кэш недоступен
	Version(ctx context.Context, rawMaterialID string) (version int64, ok bool)
	Put(ctx context.Context, report *AccountabilityReport, version int64)
	Invalidate(ctx context.Context, rawMaterialID string)
}

// RedisReportCache - кэш отчетов в Redis (MessagePack)
type RedisReportCache struct {
	redis   *utils.RedisClient
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewRedisReportCache создает кэш отчетов
func NewRedisReportCache(redis *utils.RedisClient, ttl time.Duration, m *metrics.Metrics) *RedisReportCache {
	return &RedisReportCache{redis: redis, ttl: ttl, metrics: m}
}

// cachedBucket / cachedReport - форма для MessagePack: decimal храним строками
type cachedBucket struct {
	Count            int    `msgpack:"c"`
	TotalQuantity    string `msgpack:"q"`
	TotalSpent       string `msgpack:"s"`
	AverageUnitPrice string `msgpack:"p"`
}

type cachedReport struct {
	RawMaterialID       string       `msgpack:"id"`
	RawMaterialName     string       `msgpack:"name"`
	ExclusiveSupplierID string       `msgpack:"sup"`
	Status              string       `msgpack:"st"`
	Exclusive           cachedBucket `msgpack:"ex"`
	NonExclusive        cachedBucket `msgpack:"nx"`
	OpenReservations    int          `msgpack:"or"`
	ReservedQuantity    string       `msgpack:"rq"`
	GeneratedAt         time.Time    `msgpack:"at"`
	Version             int64        `msgpack:"v"`
}

func reportKey(rawMaterialID string) string {
	return "accountability:" + rawMaterialID
}

func versionKey(rawMaterialID string) string {
	return "accountability:v:" + rawMaterialID
}

func (c *RedisReportCache) Get(ctx context.Context, rawMaterialID string) (*AccountabilityReport, bool) {
	var cached cachedReport
	found, err := c.redis.GetMsgpack(ctx, reportKey(rawMaterialID), &cached)
	if err != nil {
		log.Printf("⚠️ Redis: не удалось прочитать отчет %s: %v", rawMaterialID, err)
	}
	if found && err == nil {
		// Отчет старой версии мог попасть в кэш после Invalidate
		version, ok := c.Version(ctx, rawMaterialID)
		found = ok && version == cached.Version
	}
	c.metrics.ObserveReportCache(found && err == nil)
	if !found || err != nil {
		return nil, false
	}
	report, err := cached.toReport()
	if err != nil {
		log.Printf("⚠️ Redis: поврежденный отчет %s: %v", rawMaterialID, err)
		return nil, false
	}
	return report, true
}

func (c *RedisReportCache) Version(ctx context.Context, rawMaterialID string) (int64, bool) {
	version, _, err := c.redis.GetInt64(ctx, versionKey(rawMaterialID))
	if err != nil {
		log.Printf("⚠️ Redis: не удалось прочитать версию отчета %s: %v", rawMaterialID, err)
		return 0, false
	}
	return version, true
}

func (c *RedisReportCache) Put(ctx context.Context, report *AccountabilityReport, version int64) {
	cached := fromReport(report)
	cached.Version = version
	if err := c.redis.SetMsgpack(ctx, reportKey(report.RawMaterialID), cached, c.ttl); err != nil {
		log.Printf("⚠️ Redis: не удалось сохранить отчет %s: %v", report.RawMaterialID, err)
	}
}

// Invalidate сначала поднимает версию: даже если удаление не пройдет, старый отчет не отдастся
func (c *RedisReportCache) Invalidate(ctx context.Context, rawMaterialID string) {
	if _, err := c.redis.Incr(ctx, versionKey(rawMaterialID)); err != nil {
		log.Printf("⚠️ Redis: не удалось поднять версию отчета %s: %v", rawMaterialID, err)
	}
	if err := c.redis.Delete(ctx, reportKey(rawMaterialID)); err != nil {
		log.Printf("⚠️ Redis: не удалось сбросить отчет %s: %v", rawMaterialID, err)
	}
}

func fromBucket(b PurchaseBucket) cachedBucket {
	return cachedBucket{
		Count:            b.Count,
		TotalQuantity:    b.TotalQuantity.String(),
		TotalSpent:       b.TotalSpent.String(),
		AverageUnitPrice: b.AverageUnitPrice.String(),
	}
}

func (b cachedBucket) toBucket() (PurchaseBucket, error) {
	bucket := PurchaseBucket{Count: b.Count}
	var err error
	if bucket.TotalQuantity, err = decimal.NewFromString(b.TotalQuantity); err != nil {
		return bucket, err
	}
	if bucket.TotalSpent, err = decimal.NewFromString(b.TotalSpent); err != nil {
		return bucket, err
	}
	if bucket.AverageUnitPrice, err = decimal.NewFromString(b.AverageUnitPrice); err != nil {
		return bucket, err
	}
	return bucket, nil
}

func fromReport(r *AccountabilityReport) cachedReport {
	cached := cachedReport{
		RawMaterialID:    r.RawMaterialID,
		RawMaterialName:  r.RawMaterialName,
		Status:           string(r.Status),
		Exclusive:        fromBucket(r.Exclusive),
		NonExclusive:     fromBucket(r.NonExclusive),
		OpenReservations: r.OpenReservations,
		ReservedQuantity: r.ReservedQuantity.String(),
		GeneratedAt:      r.GeneratedAt,
	}
	if r.ExclusiveSupplierID != nil {
		cached.ExclusiveSupplierID = *r.ExclusiveSupplierID
	}
	return cached
}

func (c cachedReport) toReport() (*AccountabilityReport, error) {
	report := &AccountabilityReport{
		RawMaterialID:    c.RawMaterialID,
		RawMaterialName:  c.RawMaterialName,
		Status:           AccountabilityStatus(c.Status),
		OpenReservations: c.OpenReservations,
		GeneratedAt:      c.GeneratedAt,
	}
	if c.ExclusiveSupplierID != "" {
		id := c.ExclusiveSupplierID
		report.ExclusiveSupplierID = &id
	}
	var err error
	if report.Exclusive, err = c.Exclusive.toBucket(); err != nil {
		return nil, err
	}
	if report.NonExclusive, err = c.NonExclusive.toBucket(); err != nil {
		return nil, err
	}
	if report.ReservedQuantity, err = decimal.NewFromString(c.ReservedQuantity); err != nil {
		return nil, err
	}
	return report, nil
}
