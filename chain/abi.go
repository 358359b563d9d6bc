package chain

// Pared-down ABIs for the two contracts the client talks to. The game ABI
// carries only the entrypoints and the settlement event the client consumes;
// extra contract surface is intentionally omitted.

const ponyTokenABI = `[
	{"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
	{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}
]`

const pixelPonyABI = `[
	{"inputs":[],"name":"baseFeeAmount","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[],"name":"getGameStats","outputs":[{"name":"totalRaces","type":"uint256"},{"name":"totalPlayers","type":"uint256"},{"name":"jackpot","type":"uint256"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"player","type":"address"}],"name":"getUserTickets","outputs":[{"name":"","type":"uint256[]"}],"stateMutability":"view","type":"function"},
	{"inputs":[{"name":"horseId","type":"uint256"},{"name":"betAmount","type":"uint256"}],"name":"placeBetAndRace","outputs":[],"stateMutability":"payable","type":"function"},
	{"anonymous":false,"inputs":[
		{"indexed":true,"name":"player","type":"address"},
		{"indexed":false,"name":"winners","type":"uint256[3]"},
		{"indexed":false,"name":"betAmount","type":"uint256"},
		{"indexed":false,"name":"payout","type":"uint256"},
		{"indexed":false,"name":"won","type":"bool"}
	],"name":"RaceExecuted","type":"event"}
]`
