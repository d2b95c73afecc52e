package network_test

import (
	"context"
	"io"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/spikesim/internal/device"
	"github.com/san-kum/spikesim/internal/network"
	"github.com/san-kum/spikesim/internal/neuron"
	"github.com/san-kum/spikesim/internal/node"
	"github.com/san-kum/spikesim/internal/registry"
	"github.com/san-kum/spikesim/internal/synapse"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newNetwork(threads int) *network.Network {
	cfg := network.DefaultConfig()
	cfg.Threads = threads
	net, err := network.New(cfg, registry.New(), network.WithLogger(quiet))
	Expect(err).NotTo(HaveOccurred())
	return net
}

func create(net *network.Network, model string, n int, st node.Status) []int {
	ids, err := net.Create(model, n, st)
	Expect(err).NotTo(HaveOccurred())
	return ids
}

func recorder(net *network.Network, id int) *device.SpikeRecorder {
	nd, err := net.Node(id)
	Expect(err).NotTo(HaveOccurred())
	return nd.(*device.SpikeRecorder)
}

func multimeter(net *network.Network, id int) *device.Multimeter {
	nd, err := net.Node(id)
	Expect(err).NotTo(HaveOccurred())
	return nd.(*device.Multimeter)
}

// recurrent builds ten driven, coupled neurons and a recorder.
func recurrent(threads int, model string) (*network.Network, int) {
	net := newNetwork(threads)
	st := node.Status{"I_e": 400.0}
	if model == neuron.PPPscDeltaModel {
		st = node.Status{"c_2": 200.0}
	}
	pop := create(net, model, 10, st)
	rec := create(net, device.SpikeRecorderModel, 1, nil)
	Expect(net.ConnectRule(pop, pop, network.AllToAll, synapse.Spec{Weight: 5, Delay: 1.5})).To(Succeed())
	Expect(net.ConnectRule(pop, rec, network.AllToAll, synapse.Spec{Weight: 1, Delay: 0.1})).To(Succeed())
	return net, rec[0]
}

var _ = Describe("Network", func() {
	ctx := context.Background()

	Describe("event routing", func() {
		It("delivers a spike emitted in step t with delay d in slot t+d", func() {
			net := newNetwork(1)
			sg := create(net, device.SpikeGeneratorModel, 1, node.Status{"spike_times": []float64{1.0}})
			tgt := create(net, neuron.PscExpModel, 1, nil)
			mm := create(net, device.MultimeterModel, 1, node.Status{"interval": 0.1, "record_from": []string{"I_syn_ex"}})

			Expect(net.Connect(sg[0], tgt[0], synapse.Spec{Weight: 50, Delay: 2.0})).To(Succeed())
			Expect(net.Connect(mm[0], tgt[0], synapse.Spec{})).To(Succeed())
			Expect(net.Simulate(ctx, 5)).To(Succeed())

			samples := multimeter(net, mm[0]).Samples()
			Expect(samples).To(HaveLen(50))
			first := -1
			for i, s := range samples {
				if s.Values[0] != 0 {
					first = i
					break
				}
			}
			// emitted in step 9, delivered in step 29, sampled at its end
			Expect(first).To(Equal(29))
			Expect(samples[first].Step).To(Equal(int64(30)))
			Expect(samples[first].Values[0]).To(Equal(50.0))
		})

		It("keeps the precise time of off-grid spikes", func() {
			net := newNetwork(2)
			sg := create(net, device.SpikeGeneratorModel, 1, node.Status{
				"spike_times":   []float64{0.63, 2.17},
				"precise_times": true,
			})
			rec := create(net, device.SpikeRecorderModel, 1, nil)
			Expect(net.Connect(sg[0], rec[0], synapse.Spec{Weight: 1, Delay: 0.1})).To(Succeed())
			Expect(net.Simulate(ctx, 3)).To(Succeed())

			evs := recorder(net, rec[0]).Events()
			Expect(evs).To(HaveLen(2))
			Expect(evs[0].Time).To(BeNumerically("~", 0.63, 1e-12))
			Expect(evs[1].Time).To(BeNumerically("~", 2.17, 1e-12))
			Expect(evs[0].Stamp.OnGrid()).To(BeFalse())
		})

		It("drives precise neurons from precise input", func() {
			net := newNetwork(1)
			sg := create(net, device.SpikeGeneratorModel, 1, node.Status{
				"spike_times":   []float64{1.03},
				"precise_times": true,
			})
			tgt := create(net, neuron.AlphaCanonModel, 1, node.Status{"V_th": 1000.0})
			mm := create(net, device.MultimeterModel, 1, node.Status{"interval": 0.1, "record_from": []string{"V_m"}})
			Expect(net.Connect(sg[0], tgt[0], synapse.Spec{Weight: 100, Delay: 1.0})).To(Succeed())
			Expect(net.Connect(mm[0], tgt[0], synapse.Spec{})).To(Succeed())
			Expect(net.Simulate(ctx, 4)).To(Succeed())

			samples := multimeter(net, mm[0]).Samples()
			// arrival at 2.03 ms: still at rest at 2.0, depolarized at 2.1
			Expect(samples[19].Values[0]).To(Equal(-70.0))
			Expect(samples[20].Values[0]).To(BeNumerically(">", -70.0))
		})

		It("records the same spikes however the run is split", func() {
			whole, rec1 := recurrent(1, neuron.PscExpModel)
			Expect(whole.Simulate(ctx, 40)).To(Succeed())

			split, rec2 := recurrent(1, neuron.PscExpModel)
			for _, ms := range []float64{7.3, 10.1, 22.6} {
				Expect(split.Simulate(ctx, ms)).To(Succeed())
			}
			Expect(split.Time()).To(BeNumerically("~", 40, 1e-9))

			a, b := recorder(whole, rec1).Events(), recorder(split, rec2).Events()
			Expect(a).NotTo(BeEmpty())
			Expect(b).To(Equal(a))
		})
	})

	Describe("connection checks", func() {
		var (
			net    *network.Network
			sg, nr []int
		)

		BeforeEach(func() {
			net = newNetwork(1)
			sg = create(net, device.SpikeGeneratorModel, 1, nil)
			nr = create(net, neuron.PscExpModel, 1, nil)
		})

		It("rejects delays above the maximum", func() {
			err := net.Connect(sg[0], nr[0], synapse.Spec{Weight: 1, Delay: 25})
			Expect(err).To(MatchError(network.ErrDelayOutOfRange))
		})

		It("rejects delays below one step", func() {
			err := net.Connect(sg[0], nr[0], synapse.Spec{Weight: 1, Delay: 0.01})
			Expect(err).To(MatchError(network.ErrDelayOutOfRange))
		})

		It("rejects unknown receptors", func() {
			err := net.Connect(sg[0], nr[0], synapse.Spec{Weight: 1, Delay: 1, Receptor: 3})
			Expect(err).To(MatchError(node.ErrUnknownReceptor))
		})

		It("rejects events the target cannot handle", func() {
			dc := create(net, device.DCGeneratorModel, 1, nil)
			rec := create(net, device.SpikeRecorderModel, 1, nil)
			err := net.Connect(dc[0], rec[0], synapse.Spec{Weight: 1, Delay: 1})
			Expect(err).To(MatchError(node.ErrIncompatibleEvent))
		})

		It("rejects unknown nodes and models", func() {
			Expect(net.Connect(sg[0], 99, synapse.Spec{Weight: 1, Delay: 1})).To(MatchError(network.ErrUnknownNode))
			_, err := net.Create("hh_psc_alpha", 1, nil)
			Expect(err).To(MatchError(registry.ErrUnknownModel))
		})

		It("rejects logging intervals off the grid", func() {
			mm := create(net, device.MultimeterModel, 1, node.Status{"interval": 0.25, "record_from": []string{"V_m"}})
			Expect(net.Connect(mm[0], nr[0], synapse.Spec{})).To(MatchError(node.ErrLoggingInterval))
		})

		It("rejects unknown recordables", func() {
			mm := create(net, device.MultimeterModel, 1, node.Status{"record_from": []string{"g_ex"}})
			Expect(net.Connect(mm[0], nr[0], synapse.Spec{})).To(MatchError(node.ErrUnknownRecordable))
		})

		DescribeTable("leaves the network unchanged when one pair of a rule fails",
			func(model string, bad func() int, want error) {
				tgts := []int{nr[0], bad()}
				spec := synapse.Spec{Model: model, Weight: 1, Delay: 1}
				Expect(net.ConnectRule(sg, tgts, network.AllToAll, spec)).To(MatchError(want))
				Expect(net.NumConnections()).To(BeZero())
				Expect(net.Connections(sg[0])).To(BeEmpty())
			},
			Entry("target that takes no input", synapse.StaticModel,
				func() int { return create(net, device.DCGeneratorModel, 1, nil)[0] }, node.ErrIncompatibleEvent),
			Entry("plastic synapse onto a recorder", synapse.FacetsHWModel,
				func() int { return create(net, device.SpikeRecorderModel, 1, nil)[0] }, node.ErrIncompatibleEvent),
			Entry("unknown target", synapse.StaticModel,
				func() int { return 99 }, network.ErrUnknownNode),
		)

		It("keeps a multimeter configurable when its subscription fails", func() {
			mm := create(net, device.MultimeterModel, 1, node.Status{"record_from": []string{"V_m"}})
			dc := create(net, device.DCGeneratorModel, 1, nil)
			err := net.ConnectRule(mm, []int{nr[0], dc[0]}, network.AllToAll, synapse.Spec{})
			Expect(err).To(MatchError(node.ErrIncompatibleEvent))
			Expect(net.SetStatus(mm[0], node.Status{"record_from": []string{"I_syn_ex"}})).To(Succeed())
		})

		It("creates nothing when the parameters are invalid", func() {
			_, err := net.Create(neuron.PscExpModel, 3, node.Status{"C_m": -1.0})
			Expect(err).To(MatchError(node.ErrBadProperty))
			Expect(net.Nodes()).To(HaveLen(2))
		})

		It("rejects simulation times off the grid", func() {
			Expect(net.Simulate(ctx, 0.25)).To(MatchError(network.ErrInvalidConfig))
		})

		It("stops between slices when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			Expect(net.Simulate(cctx, 10)).To(MatchError(context.Canceled))
			Expect(net.Steps()).To(BeZero())
		})
	})

	Describe("threads and reset", func() {
		It("produces the same spikes with one and two threads", func() {
			one, r1 := recurrent(1, neuron.PscExpModel)
			two, r2 := recurrent(2, neuron.PscExpModel)
			Expect(one.Simulate(ctx, 50)).To(Succeed())
			Expect(two.Simulate(ctx, 50)).To(Succeed())
			Expect(recorder(two, r2).Events()).To(Equal(recorder(one, r1).Events()))
		})

		DescribeTable("restores the initial state on every thread",
			func(threads int, model string) {
				net, rec := recurrent(threads, model)
				initial := make(map[int]any)
				for _, id := range net.Nodes() {
					st, err := net.GetStatus(id)
					Expect(err).NotTo(HaveOccurred())
					if v, ok := st["V_m"]; ok {
						initial[id] = v
					}
				}
				Expect(initial).To(HaveLen(10))

				Expect(net.Simulate(ctx, 40)).To(Succeed())
				first := recorder(net, rec).Events()
				Expect(first).NotTo(BeEmpty())

				Expect(net.ResetNetwork()).To(Succeed())
				Expect(net.Steps()).To(BeZero())
				Expect(recorder(net, rec).Events()).To(BeEmpty())
				for id, v := range initial {
					st, err := net.GetStatus(id)
					Expect(err).NotTo(HaveOccurred())
					Expect(st["V_m"]).To(Equal(v))
				}

				Expect(net.Simulate(ctx, 40)).To(Succeed())
				Expect(recorder(net, rec).Events()).To(Equal(first))
			},
			Entry("iaf_psc_exp, one thread", 1, neuron.PscExpModel),
			Entry("iaf_psc_exp, two threads", 2, neuron.PscExpModel),
			Entry("iaf_psc_alpha_canon, two threads", 2, neuron.AlphaCanonModel),
			Entry("pp_psc_delta, one thread", 1, neuron.PPPscDeltaModel),
			Entry("pp_psc_delta, two threads", 2, neuron.PPPscDeltaModel),
		)

		It("lets a freshly created stochastic neuron fire with a fixed dead time", func() {
			net := newNetwork(2)
			pp := create(net, neuron.PPPscDeltaModel, 1, node.Status{
				"c_1": 0.0, "c_2": 1e9, "c_3": 0.0, "dead_time": 1.0,
			})
			rec := create(net, device.SpikeRecorderModel, 1, nil)
			Expect(net.Connect(pp[0], rec[0], synapse.Spec{Weight: 1, Delay: 0.1})).To(Succeed())
			Expect(net.Simulate(ctx, 10)).To(Succeed())

			nd, err := net.Node(pp[0])
			Expect(err).NotTo(HaveOccurred())
			Expect(nd.(*neuron.PPPscDelta).DeadTimeCounts()).To(Equal(int64(10)))

			// a spike in step 0, then one every dead time plus one step
			evs := recorder(net, rec[0]).Events()
			Expect(evs).To(HaveLen(10))
			for i, e := range evs {
				Expect(e.Stamp.Step).To(Equal(int64(1 + 11*i)))
			}
		})

		It("honours remaining dead time set before the first run", func() {
			net := newNetwork(1)
			pp := create(net, neuron.PPPscDeltaModel, 1, node.Status{
				"c_1": 0.0, "c_2": 1e9, "c_3": 0.0, "dead_time": 1.0, "t_ref_remaining": 0.5,
			})
			rec := create(net, device.SpikeRecorderModel, 1, nil)
			Expect(net.Connect(pp[0], rec[0], synapse.Spec{Weight: 1, Delay: 0.1})).To(Succeed())
			Expect(net.Simulate(ctx, 2)).To(Succeed())

			evs := recorder(net, rec[0]).Events()
			Expect(evs).NotTo(BeEmpty())
			Expect(evs[0].Stamp.Step).To(Equal(int64(6)))
		})

		It("owns nodes round robin", func() {
			net := newNetwork(2)
			ids := create(net, neuron.PscExpModel, 4, nil)
			for _, id := range ids {
				st, err := net.GetStatus(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(st["thread"]).To(Equal(id % 2))
			}
		})
	})

	Describe("plastic synapses", func() {
		It("assigns synapse ids in connection order before delivery", func() {
			net := newNetwork(2)
			sg := create(net, device.SpikeGeneratorModel, 1, node.Status{"spike_times": []float64{1.0, 20.0}})
			pop := create(net, neuron.PscExpModel, 3, node.Status{"I_e": 400.0})
			spec := synapse.Spec{Model: synapse.FacetsHWModel, Weight: 40, Delay: 1}
			Expect(net.ConnectRule(sg, pop, network.AllToAll, spec)).To(Succeed())
			Expect(net.Simulate(ctx, 30)).To(Succeed())

			conns := net.Connections(sg[0])
			Expect(conns).To(HaveLen(3))
			seen := map[int]int64{}
			for _, c := range conns {
				seen[c.Target()] = c.(*synapse.STDPFacetsHW).SynapseID()
			}
			for i, id := range pop {
				Expect(seen[id]).To(Equal(int64(i)))
			}

			m, err := net.Registry().Synapse(synapse.FacetsHWModel)
			Expect(err).NotTo(HaveOccurred())
			Expect(m.Defaults()["no_synapses"]).To(Equal(int64(3)))
		})

		It("requires an archiving target", func() {
			net := newNetwork(1)
			sg := create(net, device.SpikeGeneratorModel, 1, nil)
			rec := create(net, device.SpikeRecorderModel, 1, nil)
			spec := synapse.Spec{Model: synapse.FacetsHWModel, Weight: 1, Delay: 1}
			Expect(net.Connect(sg[0], rec[0], spec)).To(MatchError(node.ErrIncompatibleEvent))
		})
	})
})
