package toyenv

import (
	"math"

	"github.com/copyleftdev/sqpforge/internal/planning"
)

// lengthByName maps each active link name to its length, so a contact
// manager can reconstruct a link's near endpoint from the far-endpoint
// pose planning.StateSolver reports.
type lengthByName map[string]float64

func newLengthByName(a *Arm) lengthByName {
	m := make(lengthByName, len(a.LinkLengths))
	for i, l := range a.LinkLengths {
		m[linkName(i)] = l
	}
	return m
}

func segmentFromPose(pose planning.Pose, length float64) (near, far [2]float64) {
	theta := math.Atan2(pose.Rotation[1][0], pose.Rotation[0][0])
	far = [2]float64{pose.Translation[0], pose.Translation[1]}
	near = [2]float64{far[0] - length*math.Cos(theta), far[1] - length*math.Sin(theta)}
	return near, far
}

// DiscreteManager implements planning.DiscreteContactManager against a
// fixed set of circular obstacles.
type DiscreteManager struct {
	lengths      lengthByName
	obstacles    []Circle
	active       []string
	margin       float64
	buffer       float64
	poses        map[string]planning.Pose
}

// NewDiscreteManager builds a manager over the given arm and obstacles.
func NewDiscreteManager(arm *Arm, obstacles []Circle) *DiscreteManager {
	return &DiscreteManager{lengths: newLengthByName(arm), obstacles: obstacles}
}

// SetActiveCollisionObjects implements planning.DiscreteContactManager.
func (m *DiscreteManager) SetActiveCollisionObjects(links []string) { m.active = links }

// SetCollisionMarginData implements planning.DiscreteContactManager.
func (m *DiscreteManager) SetCollisionMarginData(margin, buffer float64) {
	m.margin, m.buffer = margin, buffer
}

// SetCollisionObjectsTransform implements planning.DiscreteContactManager.
func (m *DiscreteManager) SetCollisionObjectsTransform(poses map[string]planning.Pose) {
	m.poses = poses
}

// ContactTest implements planning.DiscreteContactManager, reporting the
// nearest point on every active link to every obstacle within the
// margin+buffer search radius.
func (m *DiscreteManager) ContactTest(req planning.ContactRequest) []planning.Contact {
	var out []planning.Contact
	search := m.margin + m.buffer + req.MarginBuffer
	for _, link := range req.ActiveLinks {
		pose, ok := m.poses[link]
		if !ok {
			continue
		}
		length := m.lengths[link]
		near, far := segmentFromPose(pose, length)
		for _, obs := range m.obstacles {
			dist, closest, normal := circleSegmentDistance(obs, near, far)
			if dist > search {
				continue
			}
			out = append(out, planning.Contact{
				LinkA:     link,
				LinkB:     obs.Name,
				Distance:  dist,
				NormalOnA: [3]float64{-normal[0], -normal[1], 0},
				PointOnA:  [3]float64{closest[0], closest[1], 0},
				PointOnB:  [3]float64{obs.Center[0] + normal[0]*obs.Radius, obs.Center[1] + normal[1]*obs.Radius, 0},
			})
		}
	}
	return out
}

// ContinuousManager implements planning.ContinuousContactManager by
// densely sampling the swept segment between two poses and taking the
// minimum discrete distance — an approximation appropriate for a toy
// environment, not a true conservative-advancement sweep.
type ContinuousManager struct {
	lengths   lengthByName
	obstacles []Circle
	active    []string
	margin    float64
	buffer    float64
	poses0    map[string]planning.Pose
	poses1    map[string]planning.Pose
}

const continuousSweepSamples = 10

// NewContinuousManager builds a manager over the given arm and obstacles.
func NewContinuousManager(arm *Arm, obstacles []Circle) *ContinuousManager {
	return &ContinuousManager{lengths: newLengthByName(arm), obstacles: obstacles}
}

// SetActiveCollisionObjects implements planning.ContinuousContactManager.
func (m *ContinuousManager) SetActiveCollisionObjects(links []string) { m.active = links }

// SetCollisionMarginData implements planning.ContinuousContactManager.
func (m *ContinuousManager) SetCollisionMarginData(margin, buffer float64) {
	m.margin, m.buffer = margin, buffer
}

// SetCollisionObjectsTransform implements planning.ContinuousContactManager.
func (m *ContinuousManager) SetCollisionObjectsTransform(poses0, poses1 map[string]planning.Pose) {
	m.poses0, m.poses1 = poses0, poses1
}

// ContactTest implements planning.ContinuousContactManager.
func (m *ContinuousManager) ContactTest(req planning.ContactRequest) []planning.Contact {
	var out []planning.Contact
	search := m.margin + m.buffer + req.MarginBuffer
	for _, link := range req.ActiveLinks {
		p0, ok0 := m.poses0[link]
		p1, ok1 := m.poses1[link]
		if !ok0 || !ok1 {
			continue
		}
		length := m.lengths[link]
		best := make(map[string]planning.Contact)
		for s := 0; s <= continuousSweepSamples; s++ {
			dt := float64(s) / float64(continuousSweepSamples)
			near, far := interpolateSegment(p0, p1, length, dt)
			for _, obs := range m.obstacles {
				dist, closest, normal := circleSegmentDistance(obs, near, far)
				if dist > search {
					continue
				}
				if c, ok := best[obs.Name]; !ok || dist < c.Distance {
					best[obs.Name] = planning.Contact{
						LinkA:     link,
						LinkB:     obs.Name,
						Distance:  dist,
						NormalOnA: [3]float64{-normal[0], -normal[1], 0},
						PointOnA:  [3]float64{closest[0], closest[1], 0},
						PointOnB:  [3]float64{obs.Center[0] + normal[0]*obs.Radius, obs.Center[1] + normal[1]*obs.Radius, 0},
					}
				}
			}
		}
		for _, c := range best {
			out = append(out, c)
		}
	}
	return out
}

func interpolateSegment(p0, p1 planning.Pose, length, dt float64) (near, far [2]float64) {
	near0, far0 := segmentFromPose(p0, length)
	near1, far1 := segmentFromPose(p1, length)
	lerp := func(a, b [2]float64) [2]float64 {
		return [2]float64{a[0] + dt*(b[0]-a[0]), a[1] + dt*(b[1]-a[1])}
	}
	return lerp(near0, near1), lerp(far0, far1)
}
