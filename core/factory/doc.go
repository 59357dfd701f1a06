// Package factory instantiates pluggable modules from configuration. A
// module is selected by its type name and receives its own raw settings,
// which the factory decodes with Decode:
//
//	reg := factory.NewRegistry[metrics.Sink]("metrics sink")
//	_ = reg.Register("influx", func(conf map[string]any) (metrics.Sink, error) {
//		var c InfluxConfig
//		if err := factory.Decode(conf, &c); err != nil {
//			return nil, err
//		}
//		return NewInfluxSink(c)
//	})
//	sink, err := reg.Create(factory.ModuleConfig{Type: "influx", Conf: raw})
package factory
