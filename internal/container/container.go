package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/config"
	"github.com/financeai/bff/internal/billing"
	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/report"
	"github.com/financeai/bff/pkg/helpers"
)

// app-level container to share constructed components across packages.
// Router modules auto-wire their handlers from these singletons; everything
// here is constructed once in main and read-only afterwards.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client

	cacheStore cache.Store
	gw         *gateway.Gateway
	resolver   *identity.Resolver

	billingBridge *billing.Bridge
	textGen       report.TextGenerator
	rabbitPub     *helpers.RabbitPublisher
)

func SetConfig(c *config.Config)        { cfg = c }
func GetConfig() *config.Config         { return cfg }
func SetLogger(l *logrus.Logger)        { logger = l }
func GetLogger() *logrus.Logger         { return logger }
func SetRedis(r *redis.Client)          { redisClient = r }
func GetRedis() *redis.Client           { return redisClient }
func SetCache(s cache.Store)            { cacheStore = s }
func GetCache() cache.Store             { return cacheStore }
func SetGateway(g *gateway.Gateway)     { gw = g }
func GetGateway() *gateway.Gateway      { return gw }
func SetResolver(r *identity.Resolver)  { resolver = r }
func GetResolver() *identity.Resolver   { return resolver }
func SetBilling(b *billing.Bridge)      { billingBridge = b }
func GetBilling() *billing.Bridge       { return billingBridge }
func SetTextGen(g report.TextGenerator) { textGen = g }
func GetTextGen() report.TextGenerator  { return textGen }

func SetRabbitPub(p *helpers.RabbitPublisher) { rabbitPub = p }
func GetRabbitPub() *helpers.RabbitPublisher  { return rabbitPub }
