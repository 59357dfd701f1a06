package charger

import (
	"context"
	"time"

	"github.com/kilianp07/solarcharger/core/logger"
)

// DataPollInterval is how often WaitForData checks for the first payload.
const DataPollInterval = 5 * time.Second

// WaitForData blocks until the first payload was accepted so the device is
// never registered with an empty snapshot. The watchdog applies while
// waiting. It returns ctx.Err() when ctx ends first.
func WaitForData(ctx context.Context, st *State, wd Watchdog, interval time.Duration, log logger.Logger) error {
	if interval <= 0 {
		interval = DataPollInterval
	}
	warnEvery := int(time.Minute / interval)
	if warnEvery < 1 {
		warnEvery = 1
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for i := 0; ; i++ {
		if st.HasData() {
			return nil
		}
		if i == 0 || i%warnEvery != 0 {
			log.Infof("Waiting %s for receiving first data...", interval)
		} else {
			log.Warnf("Waiting since %s for receiving first data...", time.Duration(i)*interval)
		}
		if err := wd.Check(time.Now(), st.Reference()); err != nil {
			log.Errorf("Driver stopped. %v", err)
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
