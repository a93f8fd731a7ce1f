// Command formrep counts push-up reps from a camera, a video file or a
// recorded keypoint stream.
package main

func main() {
	Execute()
}
