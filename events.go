package main

import (
	"context"
	"sync"

	"voicechat/hotkey"
	"voicechat/log"
)

// driveIntents feeds hotkey intents into the controller until ctx is
// done or the source closes. Uploads run on their own goroutine so
// intents arriving while a reply is pending reach the controller, which
// ignores them. An upload outlives ctx; driveIntents waits for it.
func driveIntents(ctx context.Context, src hotkey.Source, ctrl controls) {
	var uploads sync.WaitGroup
	defer uploads.Wait()
	uploadCtx := context.WithoutCancel(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case in, ok := <-src.Intents():
			if !ok {
				return
			}
			log.Debugf("intent %s", in)
			switch in {
			case hotkey.Begin:
				ctrl.BeginCapture()
			case hotkey.End:
				uploads.Add(1)
				go func() {
					defer uploads.Done()
					ctrl.EndCapture(uploadCtx)
				}()
			}
		}
	}
}
