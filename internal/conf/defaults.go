package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the default configuration values with viper.
func setDefaults() {
	viper.SetDefault("main.name", "ObraLens")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/obralens.log")
	viper.SetDefault("main.log.level", "info")
	viper.SetDefault("main.log.maxsizemb", 100)
	viper.SetDefault("main.log.maxbackups", 3)
	viper.SetDefault("main.log.maxagedays", 28)

	viper.SetDefault("webserver.port", "3001")
	viper.SetDefault("webserver.debug", false)
	viper.SetDefault("webserver.bodylimit", "200M")

	viper.SetDefault("security.jwtsecret", "")
	viper.SetDefault("security.tokenduration", 24*time.Hour)
	viper.SetDefault("security.bcryptcost", 10)

	viper.SetDefault("storage.datafile", "data/db.json")
	viper.SetDefault("storage.uploadsdir", "public/uploads")
	viper.SetDefault("storage.stagingroot", "/tmp/reviews")

	viper.SetDefault("detection.serviceurl", "http://localhost:8001")
	viper.SetDefault("detection.timeout", 30*time.Second)
	viper.SetDefault("detection.workers", 4)

	viper.SetDefault("report.rendertimeout", 2*time.Minute)
}
